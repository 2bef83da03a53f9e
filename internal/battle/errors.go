package battle

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrSelfJoin           = errors.New("cannot join your own room")
	ErrRoomAlreadyStarted = errors.New("room already started")
	ErrRoomFull           = errors.New("room is full")
	ErrGuestMissing       = errors.New("waiting for an opponent to join")
	ErrNotHost            = errors.New("only the host can start the battle")
	ErrNotInRoom          = errors.New("not in a room")
	ErrAlreadyInRoom      = errors.New("already in an active room")
	ErrNotPlaying         = errors.New("battle is not in progress")
	ErrStaleAnswer        = errors.New("answer does not match the current question")
	ErrInvalidToken       = errors.New("invalid rejoin token")
	ErrRejoinUnavailable  = errors.New("room cannot be rejoined")
	ErrNoCodeAvailable    = errors.New("could not allocate a unique room code")
)
