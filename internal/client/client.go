// Package client is a minimal duel client used by tests and tooling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medbattle-backend/api"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Response is an outbound server message. Raw holds the whole message.
type Response struct {
	Type api.ResponseType
	Raw  json.RawMessage
}

func NewClient(conn *websocket.Conn, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		timeout: timeout,
	}
}

// Dial connects to a duel websocket endpoint.
func Dial(ctx context.Context, url string, opts *websocket.DialOptions, timeout time.Duration) (*Client, error) {
	conn, res, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	return NewClient(conn, timeout), nil
}

func (c *Client) Close() {
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(context.Background(), c.timeout)
	}
	return context.WithCancel(context.Background())
}

// Send writes a raw request.
func (c *Client) Send(req any) error {
	ctx, cancel := c.context()
	defer cancel()
	return wsjson.Write(ctx, c.conn, req)
}

// ReadResponse reads the next server message.
func (c *Client) ReadResponse() (Response, error) {
	ctx, cancel := c.context()
	defer cancel()

	var raw json.RawMessage
	if err := wsjson.Read(ctx, c.conn, &raw); err != nil {
		return Response{}, err
	}
	env := struct {
		Type api.ResponseType `json:"type"`
	}{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Response{}, err
	}
	return Response{Type: env.Type, Raw: raw}, nil
}

// Expect reads the next message and decodes it into T. It fails when the
// message is not of type typ.
func Expect[T any](c *Client, typ api.ResponseType) (T, error) {
	var res T
	msg, err := c.ReadResponse()
	if err != nil {
		return res, err
	}
	if msg.Type != typ {
		return res, fmt.Errorf("got %s message %s, want %s", msg.Type, msg.Raw, typ)
	}
	return api.DecodeJSON[T](msg.Raw)
}

type createRoomRequest struct {
	Type api.RequestType `json:"type"`
	api.CreateRoomRequestData
}

type joinRoomRequest struct {
	Type api.RequestType `json:"type"`
	api.JoinRoomRequestData
}

type answerRequest struct {
	Type api.RequestType `json:"type"`
	api.AnswerRequestData
}

type rejoinRequest struct {
	Type api.RequestType `json:"type"`
	api.RejoinRequestData
}

func (c *Client) CreateRoom(data api.CreateRoomRequestData) error {
	return c.Send(createRoomRequest{
		Type:                  api.RequestTypeCreateRoom,
		CreateRoomRequestData: data,
	})
}

func (c *Client) QuickMatch(data api.CreateRoomRequestData) error {
	return c.Send(createRoomRequest{
		Type:                  api.RequestTypeQuickMatch,
		CreateRoomRequestData: data,
	})
}

func (c *Client) JoinRoom(userID, userName, code string) error {
	return c.Send(joinRoomRequest{
		Type: api.RequestTypeJoinRoom,
		JoinRoomRequestData: api.JoinRoomRequestData{
			UserID:   userID,
			UserName: userName,
			Code:     code,
		},
	})
}

func (c *Client) StartBattle() error {
	return c.Send(api.Envelope{Type: api.RequestTypeStartBattle})
}

func (c *Client) Answer(questionIndex int, letter string, timeMs int64) error {
	return c.Send(answerRequest{
		Type: api.RequestTypeAnswer,
		AnswerRequestData: api.AnswerRequestData{
			QuestionIndex: &questionIndex,
			AnswerLetter:  letter,
			TimeMs:        timeMs,
		},
	})
}

func (c *Client) Rejoin(token string) error {
	return c.Send(rejoinRequest{
		Type:              api.RequestTypeRejoin,
		RejoinRequestData: api.RejoinRequestData{Token: token},
	})
}

func (c *Client) Ping() (api.PongResponse, error) {
	if err := c.Send(api.Envelope{Type: api.RequestTypePing}); err != nil {
		return api.PongResponse{}, err
	}
	return Expect[api.PongResponse](c, api.ResponseTypePong)
}
