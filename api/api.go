package api

import "encoding/json"

type RequestType string

const (
	RequestTypeUnknown     RequestType = "unknown"
	RequestTypeCreateRoom  RequestType = "create_room"
	RequestTypeJoinRoom    RequestType = "join_room"
	RequestTypeQuickMatch  RequestType = "quick_match"
	RequestTypeStartBattle RequestType = "start_battle"
	RequestTypeAnswer      RequestType = "answer"
	RequestTypeRejoin      RequestType = "rejoin"
	RequestTypePing        RequestType = "ping"
)

type ResponseType string

const (
	ResponseTypeConnected            ResponseType = "connected"
	ResponseTypeRoomCreated          ResponseType = "room_created"
	ResponseTypeJoinedRoom           ResponseType = "joined_room"
	ResponseTypePlayerJoined         ResponseType = "player_joined"
	ResponseTypeWaitingForOpponent   ResponseType = "waiting_for_opponent"
	ResponseTypeBattleStarted        ResponseType = "battle_started"
	ResponseTypeOpponentAnswered     ResponseType = "opponent_answered"
	ResponseTypeAnswerResult         ResponseType = "answer_result"
	ResponseTypeQuestionComplete     ResponseType = "question_complete"
	ResponseTypeNextQuestion         ResponseType = "next_question"
	ResponseTypeBattleComplete       ResponseType = "battle_complete"
	ResponseTypeOpponentDisconnected ResponseType = "opponent_disconnected"
	ResponseTypeOpponentReconnected  ResponseType = "opponent_reconnected"
	ResponseTypeRejoined             ResponseType = "rejoined"
	ResponseTypeRoomClosed           ResponseType = "room_closed"
	ResponseTypePong                 ResponseType = "pong"
	ResponseTypeError                ResponseType = "error"
)

// Envelope is the common header of every inbound message. Messages are
// flat objects: the type-specific fields sit next to "type".
type Envelope struct {
	Type RequestType `json:"type"`
}

// CreateRoomRequestData is shared by create_room and quick_match.
type CreateRoomRequestData struct {
	UserID         string  `json:"userId"`
	UserName       string  `json:"userName"`
	TotalQuestions *int    `json:"totalQuestions,omitempty"`
	Specialty      *string `json:"specialty,omitempty"`
}

type JoinRoomRequestData struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Code     string `json:"code"`
}

type AnswerRequestData struct {
	QuestionIndex *int   `json:"questionIndex"`
	AnswerLetter  string `json:"answerLetter"`
	TimeMs        int64  `json:"timeMs"`
}

type RejoinRequestData struct {
	Token string `json:"token"`
}

// Option is a single answer choice of a question.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question is the client view of a question. It never carries the
// correct option.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
	Area    string   `json:"area,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// AnswerRecord is a committed answer of a participant for one question.
type AnswerRecord struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
	TimeMs  int64  `json:"time"`
}

type Winner string

const (
	WinnerHost  Winner = "host"
	WinnerGuest Winner = "guest"
	WinnerDraw  Winner = "draw"
)

type ConnectedResponse struct {
	Type      ResponseType `json:"type"`
	Timestamp int64        `json:"timestamp"`
}

type RoomCreatedResponse struct {
	Type           ResponseType `json:"type"`
	RoomID         string       `json:"roomId"`
	Code           string       `json:"code"`
	TotalQuestions int          `json:"totalQuestions"`
	Specialty      *string      `json:"specialty"`
	Token          string       `json:"token"`
}

type JoinedRoomResponse struct {
	Type           ResponseType `json:"type"`
	RoomID         string       `json:"roomId"`
	Code           string       `json:"code"`
	HostName       string       `json:"hostName"`
	TotalQuestions int          `json:"totalQuestions"`
	Specialty      *string      `json:"specialty"`
	Token          string       `json:"token"`
}

type PlayerJoinedResponse struct {
	Type      ResponseType `json:"type"`
	GuestName string       `json:"guestName"`
	GuestID   string       `json:"guestId"`
}

type WaitingForOpponentResponse struct {
	Type   ResponseType `json:"type"`
	RoomID string       `json:"roomId"`
	Code   string       `json:"code"`
}

type BattleStartedResponse struct {
	Type           ResponseType `json:"type"`
	TotalQuestions int          `json:"totalQuestions"`
	HostName       string       `json:"hostName"`
	GuestName      string       `json:"guestName"`
	Question       Question     `json:"question"`
	QuestionIndex  int          `json:"questionIndex"`
}

type OpponentAnsweredResponse struct {
	Type          ResponseType `json:"type"`
	QuestionIndex int          `json:"questionIndex"`
	TimeMs        int64        `json:"timeMs"`
}

type AnswerResultResponse struct {
	Type          ResponseType `json:"type"`
	QuestionIndex int          `json:"questionIndex"`
	Correct       bool         `json:"correct"`
	CorrectAnswer string       `json:"correctAnswer"`
	HostScore     int          `json:"hostScore"`
	GuestScore    int          `json:"guestScore"`
}

type QuestionCompleteResponse struct {
	Type          ResponseType `json:"type"`
	QuestionIndex int          `json:"questionIndex"`
	HostAnswer    AnswerRecord `json:"hostAnswer"`
	GuestAnswer   AnswerRecord `json:"guestAnswer"`
	HostScore     int          `json:"hostScore"`
	GuestScore    int          `json:"guestScore"`
	CorrectAnswer string       `json:"correctAnswer"`
}

type NextQuestionResponse struct {
	Type          ResponseType `json:"type"`
	Question      Question     `json:"question"`
	QuestionIndex int          `json:"questionIndex"`
	HostScore     int          `json:"hostScore"`
	GuestScore    int          `json:"guestScore"`
}

type BattleCompleteResponse struct {
	Type           ResponseType `json:"type"`
	HostScore      int          `json:"hostScore"`
	GuestScore     int          `json:"guestScore"`
	HostName       string       `json:"hostName"`
	GuestName      string       `json:"guestName"`
	Winner         Winner       `json:"winner"`
	TotalQuestions int          `json:"totalQuestions"`
	Forfeit        bool         `json:"forfeit,omitempty"`
}

type OpponentDisconnectedResponse struct {
	Type        ResponseType `json:"type"`
	ForfeitInMs int64        `json:"forfeitInMs,omitempty"`
}

type OpponentReconnectedResponse struct {
	Type ResponseType `json:"type"`
}

// RejoinedResponse restores the state of a duel on a new connection.
type RejoinedResponse struct {
	Type           ResponseType `json:"type"`
	RoomID         string       `json:"roomId"`
	Code           string       `json:"code"`
	Role           string       `json:"role"`
	Status         string       `json:"status"`
	TotalQuestions int          `json:"totalQuestions"`
	HostName       string       `json:"hostName"`
	GuestName      string       `json:"guestName"`
	HostScore      int          `json:"hostScore"`
	GuestScore     int          `json:"guestScore"`
	QuestionIndex  int          `json:"questionIndex"`
	Question       *Question    `json:"question,omitempty"`
	Answered       bool         `json:"answered"`
}

type RoomClosedResponse struct {
	Type   ResponseType `json:"type"`
	Reason string       `json:"reason"`
}

type PongResponse struct {
	Type      ResponseType `json:"type"`
	Timestamp int64        `json:"timestamp"`
}

// AreaData describes a question area available for topic filtering.
type AreaData struct {
	Name      string `json:"name"`
	Questions int    `json:"questions"`
}

type AreasResponse struct {
	Areas []AreaData `json:"areas"`
	Total int        `json:"total"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// DecodeJSON decodes a raw inbound message into its typed payload.
func DecodeJSON[T any](data json.RawMessage) (res T, err error) {
	if err := json.Unmarshal(data, &res); err != nil {
		return res, err
	}
	return res, nil
}
