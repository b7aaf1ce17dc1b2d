package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateActive
	stateClosing
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("sessionState(%d)", int32(s))
	}
}

// User-facing notices. The display is in raw mode, so lines end in CRLF.
const (
	noticeExit         = "\r\n## Exit from shell pressed ##\r\n"
	noticeRemoteClosed = "\r\n## Connection closed by remote ##\r\n"
	noticeLostFmt      = "\r\n## Exception on %s. Perhaps lost connection ##\r\n"
)

// Session is one interactive shell session: a WebSocket to the device, the
// local keyboard, and the local display. A Session runs once.
type Session struct {
	url     string
	keys    KeySource
	display io.Writer
	log     zerolog.Logger

	// RecordScreen keeps a virtual copy of the screen and logs it when Run
	// returns.
	RecordScreen bool

	dial     DialFunc
	probe    func() (rows, cols int)
	recorder *ScreenRecorder

	state        atomic.Int32
	conn         Conn
	remoteClosed atomic.Bool
	listenDone   chan struct{}
	closeOnce    sync.Once
	teardownOnce sync.Once
}

// NewSession prepares a session to the given endpoint URL.
func NewSession(url string, keys KeySource, display io.Writer, logger zerolog.Logger) *Session {
	return &Session{
		url:        url,
		keys:       keys,
		display:    &lockedWriter{w: display},
		log:        logger,
		dial:       DialWebSocket,
		probe:      probeTerminalSize,
		listenDone: make(chan struct{}),
	}
}

func (s *Session) current() sessionState {
	return sessionState(s.state.Load())
}

func (s *Session) setState(st sessionState) {
	s.state.Store(int32(st))
	s.log.Debug().Stringer("state", st).Msg("session state")
}

// Run connects, then drives the keyboard loop until the exit key, a send
// failure, or ctx cancellation. It returns nil when the user ended the
// session, *ConnectError if the connection never came up, and
// *TransportError if a send failed mid-session.
func (s *Session) Run(ctx context.Context) error {
	s.setState(stateConnecting)

	conn, err := s.dial(ctx, s.url)
	if err != nil {
		s.log.Error().Err(err).Msg("connect failed")
		s.setState(stateClosed)
		return &ConnectError{Host: endpointHost(s.url), Err: err}
	}
	s.conn = conn
	s.log.Info().Str("host", endpointHost(s.url)).Msg("connected")

	rows, cols := s.probe()
	s.log.Debug().Int("rows", rows).Int("cols", cols).Msg("terminal size")
	if s.RecordScreen {
		s.recorder = NewScreenRecorder(cols, rows)
		// Deferred so the listener's last chunks are on the screen.
		defer s.dumpScreen()
	}

	if err := s.sendResize(rows, cols); err != nil {
		s.log.Error().Err(err).Str("origin", originKeys).Msg("resize failed")
		s.teardown()
		return &TransportError{Origin: originKeys, Err: err}
	}

	if err := s.keys.Start(); err != nil {
		s.teardown()
		return fmt.Errorf("start keyboard: %w", err)
	}

	s.setState(stateActive)
	go s.listen()

	err = s.pump(ctx)
	s.teardown()
	<-s.listenDone
	return err
}

func (s *Session) sendResize(rows, cols int) error {
	frame, err := encodeResizeFrame(rows, cols)
	if err != nil {
		return err
	}
	return s.conn.SendText(string(frame))
}

// listen copies inbound frames to the display until the connection fails
// or is closed.
func (s *Session) listen() {
	defer close(s.listenDone)
	log := s.log.With().Str("origin", originListen).Logger()

	for {
		chunk, err := s.conn.Receive()
		if err != nil {
			active := s.current() == stateActive
			switch {
			case errors.Is(err, io.EOF):
				log.Info().Msg("connection closed")
				if active {
					s.remoteClosed.Store(true)
					io.WriteString(s.display, noticeRemoteClosed)
				}
			case active:
				log.Error().Err(err).Msg("receive failed")
				fmt.Fprintf(s.display, noticeLostFmt, originListen)
			default:
				log.Debug().Err(err).Msg("receive ended during teardown")
			}
			s.closeConn()
			return
		}
		if len(chunk) == 0 {
			continue
		}

		text, err := decodeInbound(chunk)
		if err != nil {
			log.Warn().Err(err).Msg("skipping chunk")
			continue
		}
		io.WriteString(s.display, text)
		if s.recorder != nil {
			s.recorder.WriteString(text)
		}
	}
}

// pump forwards keys to the device until the exit key or a failure.
func (s *Session) pump(ctx context.Context) error {
	log := s.log.With().Str("origin", originKeys).Logger()

	for {
		ev, err := s.keys.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				log.Info().Err(err).Msg("session cancelled")
				return nil
			case errors.Is(err, ErrKeyboardStopped), errors.Is(err, io.EOF):
				log.Info().Err(err).Msg("keyboard closed")
				return nil
			default:
				log.Error().Err(err).Msg("keyboard read failed")
				return fmt.Errorf("read keyboard: %w", err)
			}
		}

		seq, exit := mapKey(ev)
		if exit {
			log.Info().Msg("exit key pressed")
			io.WriteString(s.display, noticeExit)
			return nil
		}
		if len(seq) == 0 {
			log.Debug().Str("key", ev.String()).Msg("unmapped key")
			continue
		}

		if err := s.conn.SendBinary(encodeKeyFrame(seq)); err != nil {
			if s.remoteClosed.Load() {
				log.Info().Err(err).Msg("send after remote close")
				return nil
			}
			log.Error().Err(err).Msg("send failed")
			fmt.Fprintf(s.display, noticeLostFmt, originKeys)
			return &TransportError{Origin: originKeys, Err: err}
		}
	}
}

// closeConn closes the shared connection exactly once, whichever loop gets
// there first.
func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if s.conn == nil {
			return
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close")
		}
	})
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.setState(stateClosing)
		s.closeConn()
		if err := s.keys.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("stop keyboard")
		}
		s.setState(stateClosed)
	})
}

// dumpScreen logs the recorded screen. It must run after listen has exited.
func (s *Session) dumpScreen() {
	if err := s.recorder.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close screen recorder")
	}
	s.log.Debug().
		Int64("query_reply_bytes", s.recorder.DroppedReplyBytes()).
		Str("screen", s.recorder.Screen()).
		Msg("final screen")
}
