package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEncodeResizeFrame checks the resize frame for a 120x40 terminal.
func TestEncodeResizeFrame(t *testing.T) {
	frame, err := encodeResizeFrame(40, 120)
	if err != nil {
		t.Fatalf("encodeResizeFrame() error: %v", err)
	}

	want := `{"resize":{"width":120,"height":40}}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}

	var decoded map[string]map[string]int
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if decoded["resize"]["width"] != 120 || decoded["resize"]["height"] != 40 {
		t.Errorf("decoded = %v", decoded)
	}
}

// TestDecodeInbound covers NUL stripping and pass-through.
func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"nul_separated", []byte("\x00hello\x00world"), "helloworld"},
		{"plain", []byte("ls -la\r\n"), "ls -la\r\n"},
		{"ansi_kept", []byte("\x1b[31mred\x1b[0m"), "\x1b[31mred\x1b[0m"},
		{"only_nuls", []byte{0, 0, 0}, ""},
		{"empty", []byte{}, ""},
		{"utf8", []byte("caf\xc3\xa9\x00"), "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeInbound(tt.input)
			if err != nil {
				t.Fatalf("decodeInbound() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeInbound() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDecodeInboundMalformed verifies bad UTF-8 yields empty output and a
// warning instead of a failure.
func TestDecodeInboundMalformed(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		wantOffset int
	}{
		{"lone_continuation", []byte{'a', 0x80, 'b'}, 1},
		{"truncated_rune", []byte("ok\xe2\x82"), 2},
		{"invalid_start", []byte{0xff}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeInbound(tt.input)
			if got != "" {
				t.Errorf("output = %q, want empty", got)
			}
			var warning *DecodeWarning
			if !errors.As(err, &warning) {
				t.Fatalf("error = %v, want *DecodeWarning", err)
			}
			if warning.Offset != tt.wantOffset || warning.Size != len(tt.input) {
				t.Errorf("warning = %+v, want offset %d size %d", warning, tt.wantOffset, len(tt.input))
			}
		})
	}
}

// TestDecodeInboundProperties checks that decoding valid UTF-8 removes every
// NUL and nothing else.
func TestDecodeInboundProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	withNULs := gen.SliceOf(gen.OneConstOf(
		"\x00", "\x00\x00", "a", "Z", "é", "日本", "ß", "🙂",
		"\x1b[0m", "\x1b[A", " ", "\r\n", "\t", "~", "\x7f",
	)).Map(func(parts []string) string {
		return strings.Join(parts, "")
	})

	properties.Property("no NUL survives decoding", prop.ForAll(
		func(s string) bool {
			got, err := decodeInbound([]byte(s))
			return err == nil && !strings.ContainsRune(got, 0)
		},
		withNULs,
	))

	properties.Property("non-NUL text passes through unchanged", prop.ForAll(
		func(s string) bool {
			got, err := decodeInbound([]byte(s))
			return err == nil && got == strings.ReplaceAll(s, "\x00", "")
		},
		withNULs,
	))

	properties.Property("output is valid UTF-8", prop.ForAll(
		func(s string) bool {
			got, _ := decodeInbound([]byte(s))
			return utf8.ValidString(got)
		},
		withNULs,
	))

	properties.TestingRun(t)
}

// TestEncodeKeyFrameDoesNotAlias verifies the frame is a fresh slice.
func TestEncodeKeyFrameDoesNotAlias(t *testing.T) {
	seq := []byte("abc")
	frame := encodeKeyFrame(seq)
	frame[1] = 'X'
	if string(seq) != "abc" {
		t.Errorf("input modified: %q", seq)
	}
}
