package main

// exitKey ends the session locally. It is never sent to the device.
const exitKey = "~"

// Named keys reported by the keyboard facility.
const (
	keyEnter     = "enter"
	keySpace     = "space"
	keyTab       = "tab"
	keyUp        = "up"
	keyDown      = "down"
	keyRight     = "right"
	keyLeft      = "left"
	keyBackspace = "backspace"
)

// KeyEvent is one key from the local keyboard: either a named key such as
// "enter" or "up", or the literal text the key produced.
type KeyEvent struct {
	Name string
	Text string
}

// NamedKey builds a KeyEvent for a key that has no printable text of its own.
func NamedKey(name string) KeyEvent {
	return KeyEvent{Name: name}
}

// CharKey builds a KeyEvent for a key that produced literal text.
func CharKey(text string) KeyEvent {
	return KeyEvent{Text: text}
}

func (k KeyEvent) String() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Text
}

// keySequences holds the bytes the device shell expects for each named key.
// Arrow keys carry their own leading NUL on top of the frame marker.
var keySequences = map[string][]byte{
	keyEnter:     []byte("\n"),
	keySpace:     []byte(" "),
	keyTab:       []byte("\t"),
	keyUp:        []byte("\x00\x1b[A"),
	keyDown:      []byte("\x00\x1b[B"),
	keyRight:     []byte("\x00\x1b[C"),
	keyLeft:      []byte("\x00\x1b[D"),
	keyBackspace: []byte("\x08"),
}

// mapKey returns the wire bytes for a key. exit is true for the exit key,
// in which case seq is nil. Unknown named keys map to nil.
func mapKey(ev KeyEvent) (seq []byte, exit bool) {
	if ev.Name == exitKey || (ev.Name == "" && ev.Text == exitKey) {
		return nil, true
	}
	if ev.Name != "" {
		seq, ok := keySequences[ev.Name]
		if !ok {
			return nil, false
		}
		out := make([]byte, len(seq))
		copy(out, seq)
		return out, false
	}
	return []byte(ev.Text), false
}
