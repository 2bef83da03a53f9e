package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "medbattle-backend/internal/websocket"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
)

const testPingInterval = time.Second

// setupKeepAliveServer runs KeepAlive on every accepted connection and
// reports the error ending its read loop.
func setupKeepAliveServer(t *testing.T, mock *clock.Mock) (string, <-chan error) {
	t.Helper()

	readErr := make(chan error, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := ws.NewConn(conn)
		defer c.CloseNow()
		go c.KeepAlive(ctx, mock, testPingInterval)

		_, err = c.Read(ctx)
		readErr <- err
	}))
	t.Cleanup(s.Close)

	return "ws" + strings.TrimPrefix(s.URL, "http"), readErr
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestKeepAliveClosesUnresponsivePeer(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	url, readErr := setupKeepAliveServer(t, mock)

	// The peer never reads, so pings are never answered.
	dial(t, url)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mock.Add(testPingInterval)
		select {
		case err := <-readErr:
			if err == nil {
				t.Fatal("read ended without error")
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("unanswered pings did not close the connection")
}

func TestKeepAliveHealthyPeer(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	url, readErr := setupKeepAliveServer(t, mock)

	conn := dial(t, url)
	// CloseRead keeps reading in the background and answers pings.
	conn.CloseRead(context.Background())

	for range 5 {
		mock.Add(testPingInterval)
		select {
		case err := <-readErr:
			t.Fatalf("connection closed: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
