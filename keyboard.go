package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// KeySource delivers local key events one at a time.
type KeySource interface {
	Start() error
	// Next blocks until a key arrives, ctx is done, or the source is stopped.
	Next(ctx context.Context) (KeyEvent, error)
	Stop() error
}

// Keyboard reads keys from a terminal (or any reader) and parses them into
// KeyEvents. When the input is a terminal it is put in raw mode between
// Start and Stop, and Stop interrupts a pending read so no keystroke typed
// afterwards is consumed.
type Keyboard struct {
	in io.Reader
	fd int // -1 when in is not a terminal

	mu       sync.Mutex
	oldState *term.State
	reader   cancelreader.CancelReader
	readDone chan struct{}

	events  chan KeyEvent
	readErr chan error
	stop    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	startErr  error
	stopErr   error
}

// NewKeyboard wraps in. Nothing is read until Start.
func NewKeyboard(in io.Reader) *Keyboard {
	k := &Keyboard{
		in:       in,
		fd:       -1,
		events:   make(chan KeyEvent, 64),
		readErr:  make(chan error, 1),
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		if fd := int(f.Fd()); term.IsTerminal(fd) {
			k.fd = fd
		}
	}
	return k
}

// Start switches the terminal to raw mode and begins reading.
func (k *Keyboard) Start() error {
	k.startOnce.Do(func() {
		reader, err := cancelreader.NewReader(k.in)
		if err != nil {
			// Regular files can't be polled; reads from them never block.
			reader = &plainReader{r: k.in}
		}

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.fd >= 0 {
			state, err := term.MakeRaw(k.fd)
			if err != nil {
				reader.Close()
				k.startErr = fmt.Errorf("set terminal raw mode: %w", err)
				return
			}
			k.oldState = state
		}
		k.reader = reader
		go k.readLoop(reader)
	})
	return k.startErr
}

func (k *Keyboard) readLoop(reader cancelreader.CancelReader) {
	defer close(k.readDone)
	defer reader.Close()

	buf := make([]byte, 256)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			for _, ev := range parseKeys(buf[:n]) {
				select {
				case k.events <- ev:
				case <-k.stop:
					return
				}
			}
		}
		if errors.Is(err, cancelreader.ErrCanceled) {
			return
		}
		if err != nil {
			k.readErr <- err
			return
		}
	}
}

func (k *Keyboard) Next(ctx context.Context) (KeyEvent, error) {
	select {
	case <-k.stop:
		return KeyEvent{}, ErrKeyboardStopped
	default:
	}

	select {
	case <-k.stop:
		return KeyEvent{}, ErrKeyboardStopped
	case <-ctx.Done():
		return KeyEvent{}, ctx.Err()
	case ev := <-k.events:
		return ev, nil
	case err := <-k.readErr:
		// Keys parsed before the error still count.
		select {
		case ev := <-k.events:
			k.readErr <- err
			return ev, nil
		default:
		}
		k.readErr <- err
		return KeyEvent{}, err
	}
}

// Stop ends Next, cancels the pending read and restores the terminal. Safe
// to call more than once.
func (k *Keyboard) Stop() error {
	k.stopOnce.Do(func() {
		close(k.stop)

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.reader != nil && k.reader.Cancel() {
			// The read was interrupted; restore only once the loop is out.
			<-k.readDone
		}
		if k.oldState != nil {
			if err := term.Restore(k.fd, k.oldState); err != nil {
				k.stopErr = fmt.Errorf("restore terminal: %w", err)
			}
			k.oldState = nil
		}
	})
	return k.stopErr
}

// plainReader is a CancelReader for inputs that can't be interrupted. After
// Cancel, reads fail with cancelreader.ErrCanceled.
type plainReader struct {
	r        io.Reader
	mu       sync.Mutex
	canceled bool
}

func (p *plainReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	canceled := p.canceled
	p.mu.Unlock()
	if canceled {
		return 0, cancelreader.ErrCanceled
	}
	return p.r.Read(b)
}

func (p *plainReader) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = true
	return false
}

func (p *plainReader) Close() error { return nil }

// parseKeys splits one read from a raw-mode terminal into key events.
// Escape sequences are assumed to arrive whole within a single read.
func parseKeys(b []byte) []KeyEvent {
	var events []KeyEvent
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '\r' || c == '\n':
			events = append(events, NamedKey(keyEnter))
			// A CRLF pair is one Enter.
			if c == '\r' && i+1 < len(b) && b[i+1] == '\n' {
				i++
			}
			i++
		case c == '\t':
			events = append(events, NamedKey(keyTab))
			i++
		case c == ' ':
			events = append(events, NamedKey(keySpace))
			i++
		case c == 0x7f || c == 0x08:
			events = append(events, NamedKey(keyBackspace))
			i++
		case c == 0x1b:
			ev, size := parseEscape(b[i:])
			events = append(events, ev)
			i += size
		case c < utf8.RuneSelf:
			events = append(events, CharKey(string(c)))
			i++
		default:
			r, size := utf8.DecodeRune(b[i:])
			if r == utf8.RuneError && size <= 1 {
				events = append(events, CharKey(string(b[i:i+1])))
				i++
				continue
			}
			events = append(events, CharKey(string(b[i:i+size])))
			i += size
		}
	}
	return events
}

var arrowKeys = map[byte]string{
	'A': keyUp,
	'B': keyDown,
	'C': keyRight,
	'D': keyLeft,
}

// parseEscape reads one escape sequence from the start of b. CSI and SS3
// arrow sequences become named keys; anything else is passed through as
// literal text.
func parseEscape(b []byte) (KeyEvent, int) {
	if len(b) < 2 {
		return CharKey("\x1b"), 1
	}

	switch b[1] {
	case 'O':
		if len(b) < 3 {
			return CharKey(string(b[:2])), 2
		}
		if name, ok := arrowKeys[b[2]]; ok {
			return NamedKey(name), 3
		}
		return CharKey(string(b[:3])), 3
	case '[':
		// Parameter and intermediate bytes, then one final byte in 0x40-0x7e.
		j := 2
		for j < len(b) && b[j] >= 0x20 && b[j] <= 0x3f {
			j++
		}
		if j >= len(b) || b[j] < 0x40 || b[j] > 0x7e {
			return CharKey(string(b[:j])), j
		}
		if name, ok := arrowKeys[b[j]]; ok && j == 2 {
			return NamedKey(name), j + 1
		}
		return CharKey(string(b[:j+1])), j + 1
	default:
		// Alt+key and a lone Escape both travel as-is.
		if b[1] == 0x1b {
			return CharKey("\x1b"), 1
		}
		_, size := utf8.DecodeRune(b[1:])
		return CharKey(string(b[:1+size])), 1 + size
	}
}
