package battle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medbattle-backend/api"
	"medbattle-backend/internal/questions"
)

// Answer is a submitted choice for one question.
type Answer struct {
	QuestionIndex int
	Letter        string
	TimeMs        int64
}

// StartBattle moves the room hosted by conn from waiting to playing and
// broadcasts the first question.
func (s *Service) StartBattle(ctx context.Context, conn Conn) error {
	r, role, err := s.lockRoomOf(conn)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if role != RoleHost {
		return ErrNotHost
	}
	if r.status != StatusWaiting {
		return ErrRoomAlreadyStarted
	}
	if r.guest == nil {
		return ErrGuestMissing
	}
	s.startLocked(ctx, r)
	return nil
}

// autoStartLocked starts a quick-matched duel if both sides are still
// seated.
func (s *Service) autoStartLocked(r *Room) {
	if r.status != StatusWaiting || r.guest == nil || r.guest.conn == nil || r.host.conn == nil {
		return
	}
	s.startLocked(context.Background(), r)
}

func (s *Service) startLocked(ctx context.Context, r *Room) {
	r.cancel(timerAutoStart)
	r.status = StatusPlaying
	r.started = s.clock.Now()
	r.cursor = 0
	s.broadcast(ctx, r, s.battleStarted(r))
	s.log.InfoContext(ctx, "battle started", slog.String("room", r.id))
}

// SubmitAnswer records the answer of conn for the current question. A
// second answer to the same question is ignored. Once both participants
// answered, the question is settled and the duel advances or ends.
func (s *Service) SubmitAnswer(ctx context.Context, conn Conn, a Answer) error {
	r, role, err := s.lockRoomOf(conn)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return ErrNotPlaying
	}
	if a.QuestionIndex != r.cursor {
		return fmt.Errorf("%w: got %d, current is %d", ErrStaleAnswer, a.QuestionIndex, r.cursor)
	}
	self, opponent := r.player(role), r.player(role.other())
	if _, done := self.answers[r.cursor]; done {
		return nil
	}

	q := s.question(r, r.cursor)
	rec := api.AnswerRecord{
		Answer:  strings.ToUpper(strings.TrimSpace(a.Letter)),
		Correct: q.IsCorrect(a.Letter),
		TimeMs:  max(a.TimeMs, 0),
	}
	self.answers[r.cursor] = rec
	if rec.Correct {
		self.score++
	}

	s.send(ctx, conn, api.AnswerResultResponse{
		Type:          api.ResponseTypeAnswerResult,
		QuestionIndex: r.cursor,
		Correct:       rec.Correct,
		CorrectAnswer: q.Correct,
		HostScore:     r.host.score,
		GuestScore:    r.guestScore(),
	})
	s.send(ctx, opponent.conn, api.OpponentAnsweredResponse{
		Type:          api.ResponseTypeOpponentAnswered,
		QuestionIndex: r.cursor,
		TimeMs:        rec.TimeMs,
	})

	if _, done := opponent.answers[r.cursor]; done {
		s.settleLocked(ctx, r, q)
	}
	return nil
}

// settleLocked closes the current question once both sides answered.
func (s *Service) settleLocked(ctx context.Context, r *Room, q questions.Question) {
	index := r.cursor
	s.broadcast(ctx, r, api.QuestionCompleteResponse{
		Type:          api.ResponseTypeQuestionComplete,
		QuestionIndex: index,
		HostAnswer:    r.host.answers[index],
		GuestAnswer:   r.guest.answers[index],
		HostScore:     r.host.score,
		GuestScore:    r.guest.score,
		CorrectAnswer: q.Correct,
	})

	if index == r.totalQuestions-1 {
		s.finishLocked(ctx, r, r.winner(), false)
		return
	}
	r.schedule(s.clock, timerAdvance, s.opts.AdvanceDelay, func() {
		if r.status != StatusPlaying || r.cursor != index {
			return
		}
		r.cursor++
		s.broadcast(ctx, r, s.nextQuestion(r))
	})
}

// finishLocked completes the duel and schedules the room for removal.
func (s *Service) finishLocked(ctx context.Context, r *Room, winner api.Winner, forfeit bool) {
	r.cancel(timerAdvance)
	r.cancel(timerForfeit)
	r.status = StatusCompleted
	s.broadcast(ctx, r, battleComplete(r, winner, forfeit))
	s.metrics.BattleCompleted(string(winner), forfeit)
	s.log.InfoContext(ctx, "battle complete",
		slog.String("room", r.id),
		slog.String("winner", string(winner)),
		slog.Int("host_score", r.host.score),
		slog.Int("guest_score", r.guestScore()),
		slog.Bool("forfeit", forfeit),
	)

	r.schedule(s.clock, timerRemove, s.opts.CompletedTTL, func() {
		s.removeLocked(r)
	})
}
