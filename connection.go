package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Conn is the live transport to the device shell. One goroutine receives and
// one goroutine sends; Close may be called from either, any number of times.
type Conn interface {
	SendText(s string) error
	SendBinary(b []byte) error
	// Receive blocks for the next message. It returns io.EOF after a local
	// Close or an orderly close from the peer.
	Receive() ([]byte, error)
	Close() error
	IsConnected() bool
}

// DialFunc opens a Conn to a session URL.
type DialFunc func(ctx context.Context, rawURL string) (Conn, error)

// wsConn is a Conn over a gorilla WebSocket.
type wsConn struct {
	ws        *websocket.Conn
	connected atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to the device shell endpoint.
func DialWebSocket(ctx context.Context, rawURL string) (Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (%s): %w", resp.Status, err)
		}
		return nil, err
	}

	c := &wsConn{ws: ws}
	c.connected.Store(true)
	return c, nil
}

func (c *wsConn) SendText(s string) error {
	return c.write(websocket.TextMessage, []byte(s))
}

func (c *wsConn) SendBinary(b []byte) error {
	return c.write(websocket.BinaryMessage, b)
}

func (c *wsConn) write(messageType int, data []byte) error {
	if !c.connected.Load() {
		return ErrConnectionClosed
	}
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		if !c.connected.Load() {
			return ErrConnectionClosed
		}
		return err
	}
	return nil
}

func (c *wsConn) Receive() ([]byte, error) {
	if !c.connected.Load() {
		return nil, io.EOF
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if !c.connected.Load() {
			// Closed locally while blocked in the read.
			return nil, io.EOF
		}
		c.connected.Store(false)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Close drops the underlying network connection without a close handshake;
// the device does not need one.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *wsConn) IsConnected() bool {
	return c.connected.Load()
}

// endpointHost returns the host part of a session URL for messages that
// must not echo the URL's credentials.
func endpointHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "session endpoint"
	}
	return u.Host
}
