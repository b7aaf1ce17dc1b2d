package main

import (
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Used when the local terminal size can't be read.
const (
	defaultRows = 24
	defaultCols = 80
)

// probeTerminalSize returns the size of the controlling terminal.
func probeTerminalSize() (rows, cols int) {
	return probeSize(os.Stdout)
}

// probeSize asks the tty behind f for its window size, falling back to the
// console API (Windows) and finally to 80x24.
func probeSize(f *os.File) (rows, cols int) {
	if r, c, err := pty.Getsize(f); err == nil && r > 0 && c > 0 {
		return r, c
	}
	if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
		return h, w
	}
	return defaultRows, defaultCols
}
