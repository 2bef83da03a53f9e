package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"medbattle-backend/internal/middleware"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(middleware.RequestIDKey).(string)
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated request id %q: %v", seen, err)
	}
	if got := res.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header: got %q, want %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "client-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "client-id" {
		t.Errorf("client request id not kept: got %q", seen)
	}
}

func TestSubprotocols(t *testing.T) {
	t.Parallel()

	var auth string
	h := middleware.Subprotocols(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/battle", nil)
	req.Header.Set("Sec-WebSocket-Protocol", "medbattle, Bearer abc.def.ghi")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if auth != "Bearer abc.def.ghi" {
		t.Errorf("authorization: got %q", auth)
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := middleware.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("inner"), mw("outer"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order: got %v", order)
	}
}
