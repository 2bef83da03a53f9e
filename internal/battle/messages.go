package battle

import (
	"log/slog"

	"medbattle-backend/api"
	"medbattle-backend/internal/questions"
)

// Reasons carried by room_closed.
const (
	ReasonExpired  = "expired"
	ReasonShutdown = "shutdown"
	ReasonReplaced = "replaced"
)

func roomClosed(reason string) api.RoomClosedResponse {
	return api.RoomClosedResponse{Type: api.ResponseTypeRoomClosed, Reason: reason}
}

// ClientQuestion strips the correct option from a bank question.
func ClientQuestion(q questions.Question) api.Question {
	opts := make([]api.Option, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, api.Option{Letter: o.Letter, Text: o.Text})
	}
	return api.Question{
		ID:      q.ID,
		Text:    q.Text,
		Options: opts,
		Area:    q.Area,
		Source:  q.Source,
	}
}

// question resolves the bank entry at index of the room sequence.
// Callers hold r.mu.
func (s *Service) question(r *Room, index int) questions.Question {
	id := r.questionIDs[index]
	q, ok := s.store.Get(id)
	if !ok {
		s.log.Error("question missing from bank", slog.String("room", r.id), slog.String("question", id))
		return questions.Question{ID: id}
	}
	return q
}

func (s *Service) battleStarted(r *Room) api.BattleStartedResponse {
	return api.BattleStartedResponse{
		Type:           api.ResponseTypeBattleStarted,
		TotalQuestions: r.totalQuestions,
		HostName:       r.host.name,
		GuestName:      r.guestName(),
		Question:       ClientQuestion(s.question(r, 0)),
		QuestionIndex:  0,
	}
}

func (s *Service) nextQuestion(r *Room) api.NextQuestionResponse {
	return api.NextQuestionResponse{
		Type:          api.ResponseTypeNextQuestion,
		Question:      ClientQuestion(s.question(r, r.cursor)),
		QuestionIndex: r.cursor,
		HostScore:     r.host.score,
		GuestScore:    r.guestScore(),
	}
}

func battleComplete(r *Room, winner api.Winner, forfeit bool) api.BattleCompleteResponse {
	return api.BattleCompleteResponse{
		Type:           api.ResponseTypeBattleComplete,
		HostScore:      r.host.score,
		GuestScore:     r.guestScore(),
		HostName:       r.host.name,
		GuestName:      r.guestName(),
		Winner:         winner,
		TotalQuestions: r.totalQuestions,
		Forfeit:        forfeit,
	}
}

func (s *Service) rejoined(r *Room, role Role) api.RejoinedResponse {
	res := api.RejoinedResponse{
		Type:           api.ResponseTypeRejoined,
		RoomID:         r.id,
		Code:           r.code,
		Role:           role.String(),
		Status:         r.status.String(),
		TotalQuestions: r.totalQuestions,
		HostName:       r.host.name,
		GuestName:      r.guestName(),
		HostScore:      r.host.score,
		GuestScore:     r.guestScore(),
		QuestionIndex:  r.cursor,
	}
	if r.status == StatusPlaying {
		q := ClientQuestion(s.question(r, r.cursor))
		res.Question = &q
		_, res.Answered = r.player(role).answers[r.cursor]
	}
	return res
}
