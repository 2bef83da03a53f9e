package battle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medbattle-backend/api"

	"github.com/lithammer/shortuuid/v3"
)

// Player identifies a participant. UserID is the client supplied session
// identity, UserName its display name.
type Player struct {
	UserID   string
	UserName string
}

type RoomParams struct {
	Player

	// TotalQuestions is clamped to the configured bounds. Zero selects
	// the default count.
	TotalQuestions int

	// Specialty restricts questions to one area when the bank holds enough
	// of them.
	Specialty string
}

// CreateRoom opens a waiting room hosted by conn and sends room_created.
func (s *Service) CreateRoom(ctx context.Context, conn Conn, p RoomParams) (*Room, error) {
	if err := s.release(conn); err != nil {
		return nil, err
	}
	r, err := s.createRoom(ctx, conn, p, false)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "room created",
		slog.String("room", r.id), slog.String("code", r.code), slog.Int("questions", r.totalQuestions))
	return r, nil
}

func (s *Service) createRoom(ctx context.Context, conn Conn, p RoomParams, quick bool) (*Room, error) {
	n := s.clampQuestions(p.TotalQuestions)
	area := strings.TrimSpace(p.Specialty)
	ids, err := s.sample(n, area)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}

	r := &Room{
		id:             shortuuid.New(),
		created:        s.clock.Now(),
		totalQuestions: n,
		area:           area,
		questionIDs:    ids,
		validity:       shortuuid.New(),
		status:         StatusWaiting,
		host:           newParticipant(p.UserID, nameOr(p.UserName, defaultHostName), conn),
		timers:         map[timerKind]roomTimer{},
	}
	token, err := s.newToken(r, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	// The room is locked before it becomes visible so that room_created
	// reaches the host ahead of any join.
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	code, err := s.newCode()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	r.code = code
	s.rooms[r.id] = r
	s.codes[r.code] = r
	s.sessions[conn] = r
	s.mu.Unlock()

	s.metrics.RoomCreated()

	s.send(ctx, conn, api.RoomCreatedResponse{
		Type:           api.ResponseTypeRoomCreated,
		RoomID:         r.id,
		Code:           r.code,
		TotalQuestions: r.totalQuestions,
		Specialty:      r.specialty(),
		Token:          token,
	})
	if quick {
		s.send(ctx, conn, api.WaitingForOpponentResponse{
			Type:   api.ResponseTypeWaitingForOpponent,
			RoomID: r.id,
			Code:   r.code,
		})
	}
	return r, nil
}

// JoinRoom seats conn as the guest of the waiting room holding code.
//
// A host joining its own waiting room gets ErrSelfJoin, even from the
// connection already hosting it.
func (s *Service) JoinRoom(ctx context.Context, conn Conn, code string, p Player) (*Room, error) {
	r, ok := s.FindByCode(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if ownsWaitingRoom(r, p.UserID) {
		return nil, ErrSelfJoin
	}
	if err := s.release(conn); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}
	if err := s.joinLocked(ctx, r, conn, p); err != nil {
		return nil, err
	}
	return r, nil
}

// QuickMatch joins the oldest waiting room open to p, or creates one and
// announces waiting_for_opponent. A matched duel starts on its own after
// the quick match delay.
func (s *Service) QuickMatch(ctx context.Context, conn Conn, p RoomParams) (*Room, error) {
	if err := s.release(conn); err != nil {
		return nil, err
	}

	for _, r := range s.snapshot() {
		r.mu.Lock()
		if r.closed || r.status != StatusWaiting || r.guest != nil ||
			r.host.conn == nil || r.host.sessionID == p.UserID {
			r.mu.Unlock()
			continue
		}
		if err := s.joinLocked(ctx, r, conn, p.Player); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.schedule(s.clock, timerAutoStart, s.opts.QuickMatchDelay, func() {
			s.autoStartLocked(r)
		})
		r.mu.Unlock()
		s.log.InfoContext(ctx, "quick match paired", slog.String("room", r.id))
		return r, nil
	}

	r, err := s.createRoom(ctx, conn, p, true)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "quick match waiting", slog.String("room", r.id), slog.String("code", r.code))
	return r, nil
}

// joinLocked must be called with r.mu held.
func (s *Service) joinLocked(ctx context.Context, r *Room, conn Conn, p Player) error {
	if r.status != StatusWaiting {
		return ErrRoomAlreadyStarted
	}
	if r.host.sessionID == p.UserID {
		return ErrSelfJoin
	}
	if r.guest != nil {
		return ErrRoomFull
	}
	token, err := s.newToken(r, p.UserID)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	r.guest = newParticipant(p.UserID, nameOr(p.UserName, defaultGuestName), conn)
	s.bind(conn, r)

	s.send(ctx, r.host.conn, api.PlayerJoinedResponse{
		Type:      api.ResponseTypePlayerJoined,
		GuestName: r.guest.name,
		GuestID:   r.guest.sessionID,
	})
	s.send(ctx, conn, api.JoinedRoomResponse{
		Type:           api.ResponseTypeJoinedRoom,
		RoomID:         r.id,
		Code:           r.code,
		HostName:       r.host.name,
		TotalQuestions: r.totalQuestions,
		Specialty:      r.specialty(),
		Token:          token,
	})
	return nil
}

func ownsWaitingRoom(r *Room, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.status == StatusWaiting && r.host.sessionID == userID
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
