// Package websocket adapts a coder/websocket connection to the JSON message
// stream of a duel client.
package websocket

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// The Conn type represents a WebSocket connection.
//
// Multiple goroutines may invoke Send simultaneously. Read must only be
// called from a single goroutine.
type Conn struct {
	c *websocket.Conn
}

func NewConn(c *websocket.Conn) *Conn {
	return &Conn{c: c}
}

// Send writes v as a JSON text message.
func (c *Conn) Send(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.c, v)
}

// Read returns the next text message.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, b, err := c.c.Read(ctx)
	return b, err
}

const pingTimeout = 10 * time.Second

// KeepAlive pings the peer every interval and closes the connection when
// a ping is not answered within 10 seconds. It returns when ctx is done or
// the connection was closed. A nil clk uses the wall clock.
func (c *Conn) KeepAlive(ctx context.Context, clk clock.Clock, interval time.Duration) {
	if clk == nil {
		clk = clock.New()
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timeoutCtx, cancel := clk.WithTimeout(ctx, pingTimeout)
			err := c.c.Ping(timeoutCtx)
			cancel()
			if err != nil {
				c.c.CloseNow()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) Close(reason string) error {
	return c.c.Close(websocket.StatusNormalClosure, reason)
}

func (c *Conn) CloseNow() error {
	return c.c.CloseNow()
}
