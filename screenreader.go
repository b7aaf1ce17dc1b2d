package main

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/x/vt"
)

// ScreenRecorder follows the session output on a virtual terminal so the
// screen the user last saw can be logged once the session ends. The display
// itself always gets the raw bytes.
//
// The emulator answers device queries (cursor position, device attributes)
// on its input pipe. Nobody on this side talks back to the device, so the
// replies are read and dropped; otherwise the next query would block Write.
type ScreenRecorder struct {
	emu *vt.SafeEmulator

	replies      io.Closer
	repliesDone  chan struct{}
	droppedBytes atomic.Int64
	closeOnce    sync.Once
}

// NewScreenRecorder creates a virtual terminal the size announced to the
// device, so cursor addressing lines up.
func NewScreenRecorder(cols, rows int) *ScreenRecorder {
	emu := vt.NewSafeEmulator(cols, rows)
	sr := &ScreenRecorder{
		emu:         emu,
		repliesDone: make(chan struct{}),
	}
	if c, ok := emu.InputPipe().(io.Closer); ok {
		sr.replies = c
	}
	go sr.dropReplies()
	return sr
}

func (sr *ScreenRecorder) dropReplies() {
	defer close(sr.repliesDone)
	n, _ := io.Copy(io.Discard, sr.emu)
	sr.droppedBytes.Add(n)
}

// WriteString feeds decoded shell output to the virtual terminal. Output
// written after Close is ignored.
func (sr *ScreenRecorder) WriteString(s string) (int, error) {
	return sr.emu.Write([]byte(s))
}

// Close stops answering queries and waits for the reply reader to exit. The
// screen stays readable.
func (sr *ScreenRecorder) Close() error {
	var err error
	sr.closeOnce.Do(func() {
		if sr.replies != nil {
			err = sr.replies.Close()
		} else {
			err = sr.emu.Close()
		}
		<-sr.repliesDone
	})
	return err
}

// DroppedReplyBytes reports how much query traffic the emulator generated.
// Only final after Close.
func (sr *ScreenRecorder) DroppedReplyBytes() int64 {
	return sr.droppedBytes.Load()
}

// Screen returns the visible screen as plain text: trailing blanks trimmed
// per line, trailing empty lines dropped.
func (sr *ScreenRecorder) Screen() string {
	lines := strings.Split(sr.emu.String(), "\n")

	end := len(lines)
	for end > 0 && strings.TrimRight(lines[end-1], " \t\r") == "" {
		end--
	}
	for i := range lines[:end] {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	return strings.Join(lines[:end], "\n")
}
