package main

import (
	"bytes"
	"testing"
)

// TestKeyFrameGolden checks the exact wire bytes for every key in the table.
func TestKeyFrameGolden(t *testing.T) {
	tests := []struct {
		name string
		key  KeyEvent
		want []byte
	}{
		{"enter", NamedKey("enter"), []byte{0x00, '\n'}},
		{"space", NamedKey("space"), []byte{0x00, ' '}},
		{"tab", NamedKey("tab"), []byte{0x00, '\t'}},
		{"up", NamedKey("up"), []byte{0x00, 0x00, 0x1b, '[', 'A'}},
		{"down", NamedKey("down"), []byte{0x00, 0x00, 0x1b, '[', 'B'}},
		{"right", NamedKey("right"), []byte{0x00, 0x00, 0x1b, '[', 'C'}},
		{"left", NamedKey("left"), []byte{0x00, 0x00, 0x1b, '[', 'D'}},
		{"backspace", NamedKey("backspace"), []byte{0x00, 0x08}},
		{"letter", CharKey("h"), []byte{0x00, 'h'}},
		{"digit", CharKey("7"), []byte{0x00, '7'}},
		{"ctrl_c", CharKey("\x03"), []byte{0x00, 0x03}},
		{"multibyte", CharKey("é"), []byte{0x00, 0xc3, 0xa9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, exit := mapKey(tt.key)
			if exit {
				t.Fatalf("mapKey(%v) reported exit", tt.key)
			}
			got := encodeKeyFrame(seq)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encodeKeyFrame(mapKey(%v)) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// TestMapKeyExitSentinel verifies '~' ends the session and yields no bytes.
func TestMapKeyExitSentinel(t *testing.T) {
	for _, ev := range []KeyEvent{CharKey("~"), NamedKey("~")} {
		seq, exit := mapKey(ev)
		if !exit {
			t.Errorf("mapKey(%#v) exit = false, want true", ev)
		}
		if seq != nil {
			t.Errorf("mapKey(%#v) seq = %q, want nil", ev, seq)
		}
	}
}

// TestMapKeyTildeInsideSequence verifies only a bare '~' is the exit key.
func TestMapKeyTildeInsideSequence(t *testing.T) {
	seq, exit := mapKey(CharKey("\x1b[3~"))
	if exit {
		t.Fatal("Delete key sequence treated as exit")
	}
	if string(seq) != "\x1b[3~" {
		t.Errorf("seq = %q, want %q", seq, "\x1b[3~")
	}
}

// TestMapKeyUnknownName verifies named keys outside the table produce nothing.
func TestMapKeyUnknownName(t *testing.T) {
	seq, exit := mapKey(NamedKey("f13"))
	if exit || len(seq) != 0 {
		t.Errorf("mapKey(f13) = %q, %v; want empty, false", seq, exit)
	}
}

// TestMapKeyReturnsCopy verifies callers can't corrupt the key table.
func TestMapKeyReturnsCopy(t *testing.T) {
	seq, _ := mapKey(NamedKey("up"))
	seq[0] = 'X'

	again, _ := mapKey(NamedKey("up"))
	if again[0] != 0x00 {
		t.Errorf("key table modified through returned slice: %q", again)
	}
}
