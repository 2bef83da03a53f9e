package battle_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"medbattle-backend/api"
	"medbattle-backend/internal/battle"

	"github.com/google/go-cmp/cmp"
)

func TestStartBattle(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	ctx := context.Background()
	host := newTestConn("host")

	r, err := s.CreateRoom(ctx, host, battle.RoomParams{Player: hostPlayer})
	assertNil(t, err)
	drain(host)

	assertErrorIs(t, battle.ErrGuestMissing, s.StartBattle(ctx, host))
	assertErrorIs(t, battle.ErrNotInRoom, s.StartBattle(ctx, newTestConn("stranger")))

	guest := newTestConn("guest")
	_, err = s.JoinRoom(ctx, guest, r.Code(), guestPlayer)
	assertNil(t, err)
	drain(host)
	drain(guest)

	assertErrorIs(t, battle.ErrNotHost, s.StartBattle(ctx, guest))
	assertEqual(t, battle.StatusWaiting, r.Status())
	expectNone(t, host)

	assertNil(t, s.StartBattle(ctx, host))
	hostRes := expect[api.BattleStartedResponse](t, host)
	guestRes := expect[api.BattleStartedResponse](t, guest)
	if diff := cmp.Diff(hostRes, guestRes); diff != "" {
		t.Errorf("battle_started differs between participants (-host +guest):\n%s", diff)
	}
	assertEqual(t, r.QuestionIDs()[0], hostRes.Question.ID)
	assertEqual(t, 3, hostRes.TotalQuestions)
	assertEqual(t, hostPlayer.UserName, hostRes.HostName)
	assertEqual(t, guestPlayer.UserName, hostRes.GuestName)
	assertEqual(t, battle.StatusPlaying, r.Status())
	assertEqual(t, 0, r.Cursor())

	assertErrorIs(t, battle.ErrRoomAlreadyStarted, s.StartBattle(ctx, host))
}

func TestFullDuel(t *testing.T) {
	t.Parallel()

	s, mock := newTestService(t)
	r, host, guest := playingRoom(t, s, 3)
	ids := r.QuestionIDs()

	answer(t, s, host, 0, "A")
	result := expect[api.AnswerResultResponse](t, host)
	assertEqual(t, api.AnswerResultResponse{
		Type:          api.ResponseTypeAnswerResult,
		QuestionIndex: 0,
		Correct:       true,
		CorrectAnswer: "A",
		HostScore:     1,
		GuestScore:    0,
	}, result)
	opp := expect[api.OpponentAnsweredResponse](t, guest)
	assertEqual(t, 0, opp.QuestionIndex)
	assertEqual(t, int64(1500), opp.TimeMs)

	answer(t, s, guest, 0, "b")
	result = expect[api.AnswerResultResponse](t, guest)
	assertEqual(t, false, result.Correct)
	expect[api.OpponentAnsweredResponse](t, host)

	for _, c := range []*testConn{host, guest} {
		done := expect[api.QuestionCompleteResponse](t, c)
		assertEqual(t, api.QuestionCompleteResponse{
			Type:          api.ResponseTypeQuestionComplete,
			QuestionIndex: 0,
			HostAnswer:    api.AnswerRecord{Answer: "A", Correct: true, TimeMs: 1500},
			GuestAnswer:   api.AnswerRecord{Answer: "B", Correct: false, TimeMs: 1500},
			HostScore:     1,
			GuestScore:    0,
			CorrectAnswer: "A",
		}, done)
	}

	// The next question waits for the advance delay.
	expectNone(t, host)
	assertEqual(t, 0, r.Cursor())
	mock.Add(testAdvanceDelay)

	for i := 1; i < 3; i++ {
		for _, c := range []*testConn{host, guest} {
			next := expect[api.NextQuestionResponse](t, c)
			assertEqual(t, i, next.QuestionIndex)
			assertEqual(t, ids[i], next.Question.ID)
			b, err := json.Marshal(next)
			assertNil(t, err)
			if strings.Contains(string(b), "correct") {
				t.Errorf("next_question leaks the answer: %s", b)
			}
		}

		answer(t, s, host, i, "A")
		answer(t, s, guest, i, "a")
		expect[api.AnswerResultResponse](t, host)
		expect[api.OpponentAnsweredResponse](t, host)
		expect[api.OpponentAnsweredResponse](t, guest)
		expect[api.AnswerResultResponse](t, guest)
		expect[api.QuestionCompleteResponse](t, host)
		expect[api.QuestionCompleteResponse](t, guest)

		if i < 2 {
			mock.Add(testAdvanceDelay)
		}
	}

	for _, c := range []*testConn{host, guest} {
		end := expect[api.BattleCompleteResponse](t, c)
		assertEqual(t, api.BattleCompleteResponse{
			Type:           api.ResponseTypeBattleComplete,
			HostScore:      3,
			GuestScore:     2,
			HostName:       hostPlayer.UserName,
			GuestName:      guestPlayer.UserName,
			Winner:         api.WinnerHost,
			TotalQuestions: 3,
		}, end)
	}
	assertEqual(t, battle.StatusCompleted, r.Status())
	assertEqual(t, 3, r.Answers(battle.RoleHost))
	assertEqual(t, 3, r.Answers(battle.RoleGuest))

	hostScore, guestScore := r.Scores()
	assertEqual(t, r.CorrectAnswers(battle.RoleHost), hostScore)
	assertEqual(t, r.CorrectAnswers(battle.RoleGuest), guestScore)

	// No further question is ever pushed and the room is dropped after
	// the completed grace period.
	mock.Add(testAdvanceDelay)
	expectNone(t, host)
	assertEqual(t, 1, s.Len())

	mock.Add(testCompletedTTL)
	eventually(t, r.Closed)
	assertEqual(t, 0, s.Len())
	if _, ok := s.FindByCode(r.Code()); ok {
		t.Error("code still registered after removal")
	}
}

func TestDraw(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	_, host, guest := playingRoom(t, s, 1)

	answer(t, s, host, 0, "C")
	answer(t, s, guest, 0, "B")
	drain(guest)

	expect[api.AnswerResultResponse](t, host)
	expect[api.OpponentAnsweredResponse](t, host)
	expect[api.QuestionCompleteResponse](t, host)
	end := expect[api.BattleCompleteResponse](t, host)
	assertEqual(t, api.WinnerDraw, end.Winner)
	assertEqual(t, 0, end.HostScore)
	assertEqual(t, 0, end.GuestScore)
}

func TestGuestWins(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	_, host, guest := playingRoom(t, s, 1)

	answer(t, s, guest, 0, "A")
	answer(t, s, host, 0, "B")
	drain(host)

	expect[api.AnswerResultResponse](t, guest)
	expect[api.OpponentAnsweredResponse](t, guest)
	expect[api.QuestionCompleteResponse](t, guest)
	end := expect[api.BattleCompleteResponse](t, guest)
	assertEqual(t, api.WinnerGuest, end.Winner)
}

func TestDuplicateAnswerIgnored(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	r, host, guest := playingRoom(t, s, 3)

	answer(t, s, host, 0, "A")
	drain(host)
	drain(guest)

	answer(t, s, host, 0, "B")
	expectNone(t, host)
	expectNone(t, guest)

	rec, ok := r.Answer(battle.RoleHost, 0)
	assertEqual(t, true, ok)
	assertEqual(t, "A", rec.Answer)
	hostScore, _ := r.Scores()
	assertEqual(t, 1, hostScore)
}

func TestConcurrentAnswers(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	r, host, guest := playingRoom(t, s, 1)

	var wg sync.WaitGroup
	errc := make(chan error, 4)
	for _, c := range []*testConn{host, guest, host, guest} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.SubmitAnswer(context.Background(), c, battle.Answer{QuestionIndex: 0, Letter: "A", TimeMs: 900})
			// A repeat landing after the duel ended finds it completed.
			if err != nil && !errors.Is(err, battle.ErrNotPlaying) {
				errc <- err
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Errorf("submit answer: %v", err)
	}

	hostScore, guestScore := r.Scores()
	assertEqual(t, 1, hostScore)
	assertEqual(t, 1, guestScore)
	assertEqual(t, battle.StatusCompleted, r.Status())
	assertEqual(t, 1, r.Answers(battle.RoleHost))
	assertEqual(t, 1, r.Answers(battle.RoleGuest))

	for _, c := range []*testConn{host, guest} {
		counts := map[api.ResponseType]int{}
		for len(c.msgs) > 0 {
			switch m := (<-c.msgs).(type) {
			case api.AnswerResultResponse:
				counts[m.Type]++
			case api.OpponentAnsweredResponse:
				counts[m.Type]++
			case api.QuestionCompleteResponse:
				counts[m.Type]++
			case api.BattleCompleteResponse:
				counts[m.Type]++
				assertEqual(t, api.WinnerDraw, m.Winner)
			}
		}
		want := map[api.ResponseType]int{
			api.ResponseTypeAnswerResult:     1,
			api.ResponseTypeOpponentAnswered: 1,
			api.ResponseTypeQuestionComplete: 1,
			api.ResponseTypeBattleComplete:   1,
		}
		if diff := cmp.Diff(want, counts); diff != "" {
			t.Errorf("%s messages (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestStaleAnswer(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	ctx := context.Background()
	r, host, guest := playingRoom(t, s, 3)

	err := s.SubmitAnswer(ctx, host, battle.Answer{QuestionIndex: 1, Letter: "A"})
	assertErrorIs(t, battle.ErrStaleAnswer, err)
	assertEqual(t, 0, r.Answers(battle.RoleHost))

	answer(t, s, host, 0, "A")
	answer(t, s, guest, 0, "A")
	drain(host)
	drain(guest)

	// Between question_complete and next_question the settled question
	// is a no-op and the next one is not open yet.
	answer(t, s, host, 0, "B")
	err = s.SubmitAnswer(ctx, host, battle.Answer{QuestionIndex: 1, Letter: "A"})
	assertErrorIs(t, battle.ErrStaleAnswer, err)
	expectNone(t, guest)
	assertEqual(t, 1, r.Answers(battle.RoleHost))
}

func TestAnswerOutsidePlaying(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	ctx := context.Background()
	_, host, _ := seatedRoom(t, s, 3)

	err := s.SubmitAnswer(ctx, host, battle.Answer{QuestionIndex: 0, Letter: "A"})
	assertErrorIs(t, battle.ErrNotPlaying, err)

	err = s.SubmitAnswer(ctx, newTestConn("stranger"), battle.Answer{QuestionIndex: 0, Letter: "A"})
	assertErrorIs(t, battle.ErrNotInRoom, err)
}

func TestAdvanceCancelledOnRemove(t *testing.T) {
	t.Parallel()

	s, mock := newTestService(t)
	r, host, guest := playingRoom(t, s, 3)

	answer(t, s, host, 0, "A")
	answer(t, s, guest, 0, "A")
	drain(host)
	drain(guest)
	assertEqual(t, 1, r.PendingTimers())

	s.Remove(r.ID())
	assertEqual(t, 0, r.PendingTimers())
	assertEqual(t, true, r.Closed())

	mock.Add(testAdvanceDelay)
	expectNone(t, host)
	expectNone(t, guest)
	assertEqual(t, 0, r.Cursor())
}

func TestZeroAdvanceDelay(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, func(o *battle.Options) {
		o.AdvanceDelay = 0
	})
	_, host, guest := playingRoom(t, s, 2)

	answer(t, s, host, 0, "A")
	answer(t, s, guest, 0, "A")

	expect[api.AnswerResultResponse](t, host)
	expect[api.OpponentAnsweredResponse](t, host)
	expect[api.QuestionCompleteResponse](t, host)
	next := expect[api.NextQuestionResponse](t, host)
	assertEqual(t, 1, next.QuestionIndex)
	assertEqual(t, 1, next.HostScore)
	assertEqual(t, 1, next.GuestScore)
}
