package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"medbattle-backend/internal/logger"

	"github.com/MadAppGang/httplog"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

type Middleware func(next http.Handler) http.Handler

type ctxKeyRequestID int

const RequestIDKey ctxKeyRequestID = 0

// Set holds the middlewares applied in front of the HTTP routes.
type Set struct {
	CORS       *cors.Cors
	HTTPLogger Middleware
}

// New returns the middlewares for the current environment. Debug mode
// allows every origin and logs request and response bodies.
func New(debug bool) Set {
	if debug {
		return Set{
			CORS: cors.New(cors.Options{
				AllowedOrigins: []string{"*"},
			}),
			HTTPLogger: httplog.LoggerWithConfig(httplog.LoggerConfig{
				RouterName: "MedBattle",
				Formatter: httplog.ChainLogFormatter(
					httplog.DefaultLogFormatter,
					httplog.RequestHeaderLogFormatter, httplog.RequestBodyLogFormatter,
					httplog.ResponseHeaderLogFormatter, httplog.ResponseBodyLogFormatter),
				CaptureBody: true,
			}),
		}
	}
	return Set{
		CORS: cors.New(cors.Options{}),
		HTTPLogger: httplog.LoggerWithConfig(httplog.LoggerConfig{
			RouterName: "MedBattle",
			Formatter:  httplog.DefaultLogFormatter,
		}),
	}
}

// HTTP wraps a plain HTTP route.
func (s Set) HTTP(h http.Handler) http.Handler {
	return Chain(h, s.HTTPLogger, s.CORS.Handler, RequestID)
}

// Websocket wraps a websocket route. The response writer must stay
// hijackable, so the HTTP logger is left out.
func (s Set) Websocket(h http.Handler) http.Handler {
	return Chain(h, Subprotocols, s.CORS.Handler, RequestID)
}

// Chain wraps h so that the last middleware given runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}

// RequestID tags the request with an X-Request-ID, generated when the
// client did not send one, and attaches it to every log record of the
// request.
func RequestID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		ctx = logger.WithAttrs(ctx, slog.String("request_id", requestID))

		w.Header().Set("X-Request-ID", requestID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subprotocols reads a bearer token smuggled inside Sec-WebSocket-Protocol
// and assigns it to the Authorization header.
//
// Browser websocket clients cannot set additional headers on the
// handshake, a rejoin token travels this way instead.
func Subprotocols(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subprotocols := r.Header.Get("Sec-WebSocket-Protocol")

		for _, protocol := range strings.Split(subprotocols, ",") {
			protocol = strings.TrimSpace(protocol)
			if token, ok := strings.CutPrefix(protocol, "Bearer "); ok {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}

		h.ServeHTTP(w, r)
	})
}
