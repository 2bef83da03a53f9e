package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"medbattle-backend/api"
	"medbattle-backend/internal/battle"
	"medbattle-backend/internal/questions"
)

var errorCodeHTTPStatusCode = map[api.HTTPErrorCode]int{
	api.InternalServerErrorHTTPCode: http.StatusInternalServerError,
	api.NotFoundHTTPCode:            http.StatusNotFound,
}

// Sender writes a message to a websocket connection.
type Sender interface {
	Send(ctx context.Context, v any) error
}

func WriteHTTPError(ctx context.Context, w http.ResponseWriter, err error) {
	res := api.HTTPErrorData{}
	statusCode := http.StatusInternalServerError

	apiErr := &api.ErrorData[api.HTTPErrorCode]{}
	if err != nil && errors.As(err, apiErr) {
		res.Code = apiErr.Code
		res.Message = apiErr.Message
		res.Extra = apiErr.Extra
		if code, ok := errorCodeHTTPStatusCode[apiErr.Code]; ok {
			statusCode = code
		}
	} else {
		res.Code = api.InternalServerErrorHTTPCode
		res.Message = "unexpected error"
	}

	slog.ErrorContext(ctx, "http error",
		slog.Any("error", err),
		slog.Any("error_code", res.Code),
		slog.Int("status_code", statusCode))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.ErrorContext(ctx, "http error: failed to encode response", slog.Any("error", err))
	}
}

// WriteWebsocketError sends an error message to conn. The connection is
// left open.
func WriteWebsocketError(ctx context.Context, conn Sender, err error) {
	res := api.WebsocketErrorData{
		Type: api.ResponseTypeError,
	}

	apiErr := &api.ErrorData[api.WebsocketErrorCode]{}
	if err != nil && errors.As(err, apiErr) {
		res.Request = apiErr.Request
		res.Code = apiErr.Code
		res.Message = apiErr.Message
		res.Extra = apiErr.Extra
	} else {
		res.Code = api.InternalServerErrorCode
		res.Message = "unexpected error"
	}

	level := slog.LevelWarn
	if res.Code == api.InternalServerErrorCode {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "ws error",
		slog.Any("error", err),
		slog.String("request", string(res.Request)),
		slog.Any("error_code", res.Code))

	if err := conn.Send(ctx, res); err != nil {
		slog.ErrorContext(ctx, "ws error: failed to write response", slog.Any("error", err))
	}
}

var battleErrorCodes = []struct {
	err  error
	code api.WebsocketErrorCode
}{
	{battle.ErrRoomNotFound, api.RoomNotFoundCode},
	{battle.ErrSelfJoin, api.SelfJoinForbiddenCode},
	{battle.ErrRoomAlreadyStarted, api.RoomAlreadyStartedCode},
	{battle.ErrRoomFull, api.RoomFullCode},
	{battle.ErrGuestMissing, api.GuestMissingCode},
	{battle.ErrNotHost, api.NotRoomHostCode},
	{battle.ErrNotInRoom, api.NotInRoomCode},
	{battle.ErrAlreadyInRoom, api.AlreadyInRoomCode},
	{battle.ErrNotPlaying, api.BattleNotPlayingCode},
	{battle.ErrStaleAnswer, api.StaleAnswerCode},
	{battle.ErrInvalidToken, api.InvalidTokenCode},
	{battle.ErrRejoinUnavailable, api.RejoinUnavailableCode},
}

// BattleError maps an error returned by the battle service to its wire
// code. Unknown errors become internal server errors.
func BattleError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	for _, e := range battleErrorCodes {
		if errors.Is(err, e.err) {
			return api.ErrorData[api.WebsocketErrorCode]{
				Request: req,
				Code:    e.code,
				Message: e.err.Error(),
				Err:     err,
			}
		}
	}
	if errors.Is(err, questions.ErrNotEnoughQuestions) {
		return InvalidRequestError(err, req, "not enough questions for this room")
	}
	return InternalServerError(err, req)
}

func InvalidRequestError(err error, req api.RequestType, cause string) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InvalidRequestCode,
		Message: "invalid request",
		Extra: struct {
			Cause string `json:"cause"`
		}{
			Cause: cause,
		},
		Err: err,
	}
}

func RateLimitedError(req api.RequestType, retryAfter time.Duration) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.RateLimitedCode,
		Message: "too many messages",
		Extra: struct {
			RetryInMs int64 `json:"retryInMs"`
		}{
			RetryInMs: retryAfter.Milliseconds(),
		},
	}
}

func NotFoundError(path string) api.ErrorData[api.HTTPErrorCode] {
	return api.ErrorData[api.HTTPErrorCode]{
		Code:    api.NotFoundHTTPCode,
		Message: "not found",
		Extra: struct {
			Path string `json:"path"`
		}{
			Path: path,
		},
	}
}

func HTTPInternalServerError(err error) api.ErrorData[api.HTTPErrorCode] {
	return api.ErrorData[api.HTTPErrorCode]{
		Code:    api.InternalServerErrorHTTPCode,
		Message: "internal server error",
		Err:     err,
	}
}

func InternalServerError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InternalServerErrorCode,
		Message: "internal server error",
		Err:     err,
	}
}
