package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"medbattle-backend/api"
	"medbattle-backend/internal/battle"
	"medbattle-backend/internal/config"
	errs "medbattle-backend/internal/errors"
	"medbattle-backend/internal/logger"
	"medbattle-backend/internal/metrics"
	"medbattle-backend/internal/questions"
	"medbattle-backend/internal/rate"
	ws "medbattle-backend/internal/websocket"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
)

const requestTimeout = 5 * time.Second

// BattleHandler serves the duel websocket endpoint. Every connection is
// one client session, its messages are handled in arrival order.
type BattleHandler struct {
	Service       *battle.Service
	Config        config.WebsocketConf
	Metrics       *metrics.Metrics
	Clock         clock.Clock
	AcceptOptions websocket.AcceptOptions
}

func (h BattleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &h.AcceptOptions)
	if err != nil {
		// Accept already writes a status code and error message.
		slog.ErrorContext(r.Context(), "websocket accept", slog.Any("error", err))
		return
	}
	if h.Config.ReadLimit > 0 {
		conn.SetReadLimit(h.Config.ReadLimit)
	}
	clk := h.Clock
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := ws.NewConn(conn)
	defer c.CloseNow()
	if h.Config.PingInterval > 0 {
		go c.KeepAlive(ctx, clk, h.Config.PingInterval) // Detect timed out connection.
	}
	defer h.Service.Disconnect(context.WithoutCancel(ctx), c)

	h.send(ctx, c, api.ConnectedResponse{
		Type:      api.ResponseTypeConnected,
		Timestamp: clk.Now().UnixMilli(),
	})
	slog.InfoContext(ctx, "client connected")

	if token := bearerToken(r); token != "" {
		timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		h.rejoin(timeoutCtx, c, token)
		cancel()
	}

	limit := max(h.Config.RateLimit, 1)
	window := h.Config.RateWindow
	if window <= 0 {
		window = time.Second
	}
	limiter := rate.NewLimiter(window, limit, clk)

	for {
		data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				slog.InfoContext(ctx, "client disconnected")
			} else {
				slog.WarnContext(ctx, "websocket read", slog.Any("error", err))
			}
			return
		}

		if !limiter.Allow() {
			h.Metrics.MessageRateLimited()
			timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			errs.WriteWebsocketError(timeoutCtx, c, errs.RateLimitedError(api.RequestTypeUnknown, limiter.RetryAfter()))
			cancel()
			continue
		}

		h.dispatch(ctx, c, clk, data)
	}
}

func (h BattleHandler) dispatch(ctx context.Context, c *ws.Conn, clk clock.Clock, data json.RawMessage) {
	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	env, err := api.DecodeJSON[api.Envelope](data)
	if err != nil {
		h.Metrics.MessageReceived(string(api.RequestTypeUnknown))
		apiErr := errs.InvalidRequestError(err, api.RequestTypeUnknown, "malformed message")
		errs.WriteWebsocketError(timeoutCtx, c, apiErr)
		return
	}

	timeoutCtx = logger.WithAttrs(timeoutCtx, slog.String("request", string(env.Type)))

	switch env.Type {
	case api.RequestTypeCreateRoom:
		h.handleCreateRoom(timeoutCtx, c, data, false)
	case api.RequestTypeQuickMatch:
		h.handleCreateRoom(timeoutCtx, c, data, true)
	case api.RequestTypeJoinRoom:
		h.handleJoinRoom(timeoutCtx, c, data)
	case api.RequestTypeStartBattle:
		h.handleStartBattle(timeoutCtx, c)
	case api.RequestTypeAnswer:
		h.handleAnswer(timeoutCtx, c, data)
	case api.RequestTypeRejoin:
		h.handleRejoin(timeoutCtx, c, data)
	case api.RequestTypePing:
		h.send(timeoutCtx, c, api.PongResponse{
			Type:      api.ResponseTypePong,
			Timestamp: clk.Now().UnixMilli(),
		})
	default:
		h.Metrics.MessageReceived(string(api.RequestTypeUnknown))
		apiErr := errs.InvalidRequestError(errors.New("unknown request type"), api.RequestTypeUnknown, "unknown request type: "+string(env.Type))
		errs.WriteWebsocketError(timeoutCtx, c, apiErr)
		return
	}
	h.Metrics.MessageReceived(string(env.Type))
}

func (h BattleHandler) send(ctx context.Context, c *ws.Conn, v any) {
	if err := c.Send(ctx, v); err != nil {
		slog.WarnContext(ctx, "websocket write", slog.Any("error", err))
	}
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// AreasHandler lists the question areas usable as a specialty filter.
func AreasHandler(bank *questions.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		areas := bank.Areas()
		res := api.AreasResponse{
			Areas: make([]api.AreaData, 0, len(areas)),
			Total: bank.Len(),
		}
		for _, a := range areas {
			res.Areas = append(res.Areas, api.AreaData{Name: a.Name, Questions: a.Questions})
		}
		writeJSON(r.Context(), w, res)
	}
}

func HealthHandler(svc *battle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, api.HealthResponse{
			Status: "ok",
			Rooms:  svc.Len(),
		})
	}
}

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	errs.WriteHTTPError(r.Context(), w, errs.NotFoundError(r.URL.Path))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "http response encode", slog.Any("error", err))
	}
}
