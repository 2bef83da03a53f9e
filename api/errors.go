package api

type HTTPErrorData struct {
	Code    HTTPErrorCode `json:"code"`
	Message string        `json:"message,omitempty"`
	Extra   any           `json:"extra,omitempty"`
}

type HTTPErrorCode uint8

const (
	InternalServerErrorHTTPCode HTTPErrorCode = 101
	NotFoundHTTPCode            HTTPErrorCode = 102
)

// WebsocketErrorData is the flat error message written to a connection.
type WebsocketErrorData struct {
	Type    ResponseType       `json:"type"`
	Request RequestType        `json:"request,omitempty"`
	Code    WebsocketErrorCode `json:"code"`
	Message string             `json:"message"`
	Extra   any                `json:"extra,omitempty"`
}

type WebsocketErrorCode uint8

const (
	InvalidRequestCode      WebsocketErrorCode = 201
	RoomNotFoundCode        WebsocketErrorCode = 202
	SelfJoinForbiddenCode   WebsocketErrorCode = 203
	RoomAlreadyStartedCode  WebsocketErrorCode = 204
	RoomFullCode            WebsocketErrorCode = 205
	GuestMissingCode        WebsocketErrorCode = 206
	NotRoomHostCode         WebsocketErrorCode = 207
	NotInRoomCode           WebsocketErrorCode = 208
	AlreadyInRoomCode       WebsocketErrorCode = 209
	BattleNotPlayingCode    WebsocketErrorCode = 210
	StaleAnswerCode         WebsocketErrorCode = 211
	InvalidTokenCode        WebsocketErrorCode = 212
	RejoinUnavailableCode   WebsocketErrorCode = 213
	RateLimitedCode         WebsocketErrorCode = 214
	InternalServerErrorCode WebsocketErrorCode = 215
)

type ErrorCode interface {
	HTTPErrorCode | WebsocketErrorCode
}

type ErrorData[T ErrorCode] struct { //nolint: errname
	Request RequestType `json:"request,omitempty"`
	Code    T           `json:"code"`
	Message string      `json:"message,omitempty"`
	Extra   any         `json:"extra,omitempty"`
	Err     error       `json:"-"`
}

func (e ErrorData[T]) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

func (e ErrorData[T]) Unwrap() error {
	return e.Err
}
