package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"medbattle-backend/api"
	"medbattle-backend/internal/battle"
	errs "medbattle-backend/internal/errors"
	ws "medbattle-backend/internal/websocket"
)

func (h BattleHandler) handleCreateRoom(ctx context.Context, c *ws.Conn, data json.RawMessage, quick bool) {
	reqType := api.RequestTypeCreateRoom
	if quick {
		reqType = api.RequestTypeQuickMatch
	}

	req, err := api.DecodeJSON[api.CreateRoomRequestData](data)
	if err != nil {
		apiErr := errs.InvalidRequestError(err, reqType, "invalid "+string(reqType)+" request")
		errs.WriteWebsocketError(ctx, c, apiErr)
		return
	}
	if err := validatePlayer(req.UserID, req.UserName); err != nil {
		errs.WriteWebsocketError(ctx, c, errs.InvalidRequestError(err, reqType, err.Error()))
		return
	}

	params := battle.RoomParams{
		Player: battle.Player{UserID: req.UserID, UserName: req.UserName},
	}
	if req.TotalQuestions != nil {
		params.TotalQuestions = *req.TotalQuestions
	}
	if req.Specialty != nil {
		params.Specialty = *req.Specialty
	}

	var room *battle.Room
	if quick {
		room, err = h.Service.QuickMatch(ctx, c, params)
	} else {
		room, err = h.Service.CreateRoom(ctx, c, params)
	}
	if err != nil {
		errs.WriteWebsocketError(ctx, c, errs.BattleError(err, reqType))
		return
	}
	slog.InfoContext(ctx, "successful request", slog.String("room", room.ID()))
}

func (h BattleHandler) handleJoinRoom(ctx context.Context, c *ws.Conn, data json.RawMessage) {
	req, err := api.DecodeJSON[api.JoinRoomRequestData](data)
	if err != nil {
		apiErr := errs.InvalidRequestError(err, api.RequestTypeJoinRoom, "invalid join_room request")
		errs.WriteWebsocketError(ctx, c, apiErr)
		return
	}
	if err := validatePlayer(req.UserID, req.UserName); err != nil {
		errs.WriteWebsocketError(ctx, c, errs.InvalidRequestError(err, api.RequestTypeJoinRoom, err.Error()))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		err := errors.New("missing room code")
		errs.WriteWebsocketError(ctx, c, errs.InvalidRequestError(err, api.RequestTypeJoinRoom, err.Error()))
		return
	}

	room, err := h.Service.JoinRoom(ctx, c, req.Code, battle.Player{UserID: req.UserID, UserName: req.UserName})
	if err != nil {
		errs.WriteWebsocketError(ctx, c, errs.BattleError(err, api.RequestTypeJoinRoom))
		return
	}
	slog.InfoContext(ctx, "successful request", slog.String("room", room.ID()))
}

func (h BattleHandler) handleStartBattle(ctx context.Context, c *ws.Conn) {
	if err := h.Service.StartBattle(ctx, c); err != nil {
		errs.WriteWebsocketError(ctx, c, errs.BattleError(err, api.RequestTypeStartBattle))
		return
	}
	slog.InfoContext(ctx, "successful request")
}

func (h BattleHandler) handleAnswer(ctx context.Context, c *ws.Conn, data json.RawMessage) {
	req, err := api.DecodeJSON[api.AnswerRequestData](data)
	if err != nil {
		apiErr := errs.InvalidRequestError(err, api.RequestTypeAnswer, "invalid answer request")
		errs.WriteWebsocketError(ctx, c, apiErr)
		return
	}
	if req.QuestionIndex == nil || strings.TrimSpace(req.AnswerLetter) == "" {
		err := errors.New("questionIndex and answerLetter are required")
		errs.WriteWebsocketError(ctx, c, errs.InvalidRequestError(err, api.RequestTypeAnswer, err.Error()))
		return
	}

	err = h.Service.SubmitAnswer(ctx, c, battle.Answer{
		QuestionIndex: *req.QuestionIndex,
		Letter:        req.AnswerLetter,
		TimeMs:        req.TimeMs,
	})
	if err != nil {
		errs.WriteWebsocketError(ctx, c, errs.BattleError(err, api.RequestTypeAnswer))
		return
	}
	slog.DebugContext(ctx, "successful request", slog.Int("question", *req.QuestionIndex))
}

func (h BattleHandler) handleRejoin(ctx context.Context, c *ws.Conn, data json.RawMessage) {
	req, err := api.DecodeJSON[api.RejoinRequestData](data)
	if err != nil || req.Token == "" {
		if err == nil {
			err = errors.New("missing token")
		}
		apiErr := errs.InvalidRequestError(err, api.RequestTypeRejoin, "invalid rejoin request")
		errs.WriteWebsocketError(ctx, c, apiErr)
		return
	}
	h.rejoin(ctx, c, req.Token)
}

func (h BattleHandler) rejoin(ctx context.Context, c *ws.Conn, token string) {
	room, err := h.Service.Rejoin(ctx, c, token)
	if err != nil {
		errs.WriteWebsocketError(ctx, c, errs.BattleError(err, api.RequestTypeRejoin))
		return
	}
	slog.InfoContext(ctx, "successful request", slog.String("room", room.ID()))
}

func validatePlayer(userID, userName string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("missing userId")
	}
	if utf8.RuneCountInString(userID) > 64 {
		return errors.New("userId too long")
	}
	if utf8.RuneCountInString(strings.TrimSpace(userName)) > 32 {
		return errors.New("userName too long")
	}
	return nil
}
