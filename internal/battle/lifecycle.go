package battle

import (
	"context"
	"log/slog"

	"medbattle-backend/api"
)

// Disconnect unbinds conn from its room.
//
// A waiting room is removed and the opponent told. In a playing room the
// opponent is told how long the missing participant has to rejoin before
// forfeiting. A completed room is removed once nobody is left.
func (s *Service) Disconnect(ctx context.Context, conn Conn) {
	r, role, err := s.lockRoomOf(conn)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	self, opponent := r.player(role), r.player(role.other())
	self.conn = nil
	s.unbind(conn, r)

	var opponentConn Conn
	if opponent != nil {
		opponentConn = opponent.conn
	}

	switch r.status {
	case StatusWaiting:
		s.send(ctx, opponentConn, api.OpponentDisconnectedResponse{Type: api.ResponseTypeOpponentDisconnected})
		s.removeLocked(r)
	case StatusPlaying:
		if opponentConn == nil {
			s.removeLocked(r)
			return
		}
		s.send(ctx, opponentConn, api.OpponentDisconnectedResponse{
			Type:        api.ResponseTypeOpponentDisconnected,
			ForfeitInMs: s.opts.ForfeitTimeout.Milliseconds(),
		})
		r.schedule(s.clock, timerForfeit, s.opts.ForfeitTimeout, func() {
			if r.status != StatusPlaying || self.conn != nil {
				return
			}
			winner := api.WinnerGuest
			if role == RoleGuest {
				winner = api.WinnerHost
			}
			s.finishLocked(context.Background(), r, winner, true)
		})
	case StatusCompleted:
		if opponentConn == nil {
			s.removeLocked(r)
		}
	}
	s.log.InfoContext(ctx, "participant disconnected",
		slog.String("room", r.id), slog.String("role", role.String()), slog.String("status", r.status.String()))
}

// Rejoin rebinds conn to the seat a token was issued for. Only playing
// and completed rooms can be rejoined. A seat still held by another
// connection is taken over and the previous connection told.
func (s *Service) Rejoin(ctx context.Context, conn Conn, token string) (*Room, error) {
	claims, err := s.checkToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.release(conn); err != nil {
		return nil, err
	}
	r, ok := s.Room(claims.roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}
	if claims.validity != r.validity {
		return nil, ErrInvalidToken
	}
	role, ok := r.roleBySession(claims.sessionID)
	if !ok {
		return nil, ErrInvalidToken
	}
	if r.status == StatusWaiting {
		return nil, ErrRejoinUnavailable
	}

	self := r.player(role)
	if prev := self.conn; prev != nil && prev != conn {
		s.send(ctx, prev, roomClosed(ReasonReplaced))
		s.unbind(prev, r)
	}
	self.conn = conn
	s.bind(conn, r)

	var peer Conn
	if opponent := r.player(role.other()); opponent != nil {
		peer = opponent.conn
	}
	if r.status == StatusPlaying {
		r.cancel(timerForfeit)
	}
	s.send(ctx, conn, s.rejoined(r, role))
	s.send(ctx, peer, api.OpponentReconnectedResponse{Type: api.ResponseTypeOpponentReconnected})

	s.log.InfoContext(ctx, "participant rejoined", slog.String("room", r.id), slog.String("role", role.String()))
	return r, nil
}

// Reap removes every room older than the configured max age, whatever its
// status, and returns how many were removed.
func (s *Service) Reap(ctx context.Context) int {
	now := s.clock.Now()
	n := 0
	for _, r := range s.snapshot() {
		if now.Sub(r.created) <= s.opts.MaxAge {
			continue
		}
		r.mu.Lock()
		if !r.closed {
			s.broadcast(ctx, r, roomClosed(ReasonExpired))
			s.removeLocked(r)
			s.metrics.RoomReaped()
			n++
		}
		r.mu.Unlock()
	}
	if n > 0 {
		s.log.InfoContext(ctx, "reaped expired rooms", slog.Int("count", n))
	}
	return n
}

// RunReaper calls Reap every reap interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := s.clock.Ticker(s.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(ctx)
		}
	}
}
