package main

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// keyFrameMarker prefixes every keystroke frame so the device can tell key
// input apart from control traffic.
const keyFrameMarker = 0x00

type resizeGeometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type resizeFrame struct {
	Resize resizeGeometry `json:"resize"`
}

// encodeResizeFrame builds the text frame announcing the local terminal size.
func encodeResizeFrame(rows, cols int) ([]byte, error) {
	return json.Marshal(resizeFrame{Resize: resizeGeometry{Width: cols, Height: rows}})
}

// encodeKeyFrame builds the binary frame for one key: the marker byte
// followed by the key's bytes, unchanged.
func encodeKeyFrame(seq []byte) []byte {
	frame := make([]byte, 0, len(seq)+1)
	frame = append(frame, keyFrameMarker)
	return append(frame, seq...)
}

// decodeInbound turns one received chunk into displayable text. NUL bytes
// are dropped. A chunk that is not valid UTF-8 yields "" and a
// *DecodeWarning; callers skip it and keep reading.
func decodeInbound(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", &DecodeWarning{Size: len(raw), Offset: firstInvalidUTF8(raw)}
	}
	return strings.ReplaceAll(string(raw), "\x00", ""), nil
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
