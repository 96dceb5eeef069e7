// Package console manages the websocket remote-console session to the game
// server: a single live connection with request/response correlation, and a
// supervisor that keeps it alive across transient failures.
package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrAuthRejected marks a credential rejection during the websocket
// handshake. It is terminal: the supervisor stops retrying on it.
var ErrAuthRejected = errors.New("console: authentication rejected")

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("console: connection closed")

// frame is the wire format: every command carries an identifier and the
// response echoes it back, so concurrent senders can be multiplexed over
// one socket.
type frame struct {
	Identifier int    `json:"Identifier"`
	Message    string `json:"Message"`
	Type       string `json:"Type,omitempty"`
}

// Conn is one live console session. Constructed only by the Supervisor.
type Conn struct {
	ws *websocket.Conn

	mu      sync.Mutex
	nextID  int
	pending map[int]chan string
	closed  bool

	closeOnce sync.Once
	onClosed  func(err error)
}

// Dial opens a console session. The password travels in the URL path; a
// 401/403 handshake response is reported as ErrAuthRejected so the caller
// can distinguish bad credentials from an unreachable host.
func Dial(ctx context.Context, addr, password string, onClosed func(err error)) (*Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/" + password}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w (HTTP %d)", ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("console: dial %s: %w", addr, err)
	}

	c := &Conn{
		ws:       ws,
		nextID:   1,
		pending:  map[int]chan string{},
		onClosed: onClosed,
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.teardown(err)
			return
		}
		if f.Identifier <= 0 {
			// Unsolicited broadcast frame; game events reach the bridge
			// through the log tailer instead.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.Identifier]
		if ok {
			delete(c.pending, f.Identifier)
		}
		c.mu.Unlock()
		if ok {
			ch <- f.Message
		} else {
			log.Printf("console: response for unknown identifier %d", f.Identifier)
		}
	}
}

// Send issues a command and waits for its correlated response. The wait is
// bounded only by ctx; the console protocol has no timeout of its own.
func (c *Conn) Send(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	id := c.nextID
	c.nextID++
	ch := make(chan string, 1)
	c.pending[id] = ch
	err := c.ws.WriteJSON(frame{Identifier: id, Message: command})
	c.mu.Unlock()

	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return "", fmt.Errorf("console: write: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return "", ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return "", ctx.Err()
	}
}

// Close tears down the session. The onClosed callback still fires exactly
// once, from the read loop noticing the dead socket or from here.
func (c *Conn) Close() error {
	err := c.ws.Close()
	c.teardown(ErrClosed)
	return err
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		pending := c.pending
		c.pending = map[int]chan string{}
		c.mu.Unlock()

		c.ws.Close()
		for _, ch := range pending {
			close(ch)
		}
		if c.onClosed != nil {
			c.onClosed(err)
		}
	})
}
