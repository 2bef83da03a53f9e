package battle_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"medbattle-backend/api"
	"medbattle-backend/internal/battle"
	"medbattle-backend/internal/questions"

	"github.com/benbjohnson/clock"
)

const (
	testAdvanceDelay = 3 * time.Second
	testForfeit      = 30 * time.Second
	testCompletedTTL = time.Minute
	testMaxAge       = 30 * time.Minute
)

// testConn records every message sent to it.
type testConn struct {
	name string
	msgs chan any
}

func newTestConn(name string) *testConn {
	return &testConn{name: name, msgs: make(chan any, 128)}
}

func (c *testConn) Send(_ context.Context, v any) error {
	select {
	case c.msgs <- v:
		return nil
	default:
		return fmt.Errorf("%s: outbox full", c.name)
	}
}

// expect waits for the next message of c and asserts its type.
func expect[T any](t *testing.T, c *testConn) T {
	t.Helper()
	var want T
	select {
	case v := <-c.msgs:
		got, ok := v.(T)
		if !ok {
			t.Fatalf("%s: got %T %+v, want %T", c.name, v, v, want)
		}
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for %T", c.name, want)
	}
	return want
}

func expectNone(t *testing.T, c *testConn) {
	t.Helper()
	select {
	case v := <-c.msgs:
		t.Fatalf("%s: unexpected message %T %+v", c.name, v, v)
	case <-time.After(20 * time.Millisecond):
	}
}

func drain(c *testConn) {
	for {
		select {
		case <-c.msgs:
		default:
			return
		}
	}
}

// testBank holds 12 questions whose correct option is always "A": six in
// "Cardiologia" and six in "Neurologia".
func testBank(t *testing.T) *questions.Bank {
	t.Helper()
	qs := make([]questions.Question, 0, 12)
	for i := range 12 {
		area := "Cardiologia"
		if i >= 6 {
			area = "Neurologia"
		}
		qs = append(qs, questions.Question{
			ID:   fmt.Sprintf("Q%02d", i),
			Area: area,
			Text: fmt.Sprintf("question %d", i),
			Options: []questions.Option{
				{Letter: "A", Text: "right"},
				{Letter: "B", Text: "wrong"},
				{Letter: "C", Text: "wrong"},
			},
			Correct: "A",
		})
	}
	bank, err := questions.New(qs)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return bank
}

func testOptions(mock *clock.Mock) battle.Options {
	return battle.Options{
		MinQuestions:     1,
		MaxQuestions:     10,
		DefaultQuestions: 3,
		AdvanceDelay:     testAdvanceDelay,
		QuickMatchDelay:  0,
		CompletedTTL:     testCompletedTTL,
		ForfeitTimeout:   testForfeit,
		MaxAge:           testMaxAge,
		ReapInterval:     5 * time.Minute,
		SendTimeout:      time.Second,
		Secret:           []byte("test secret"),
		Clock:            mock,
		Rand:             rand.New(rand.NewPCG(1, 2)),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestService(t *testing.T, modify ...func(*battle.Options)) (*battle.Service, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts := testOptions(mock)
	for _, fn := range modify {
		fn(&opts)
	}
	return battle.NewService(testBank(t), opts), mock
}

var (
	hostPlayer  = battle.Player{UserID: "host-session", UserName: "Ana"}
	guestPlayer = battle.Player{UserID: "guest-session", UserName: "Bruno"}
)

// seatedRoom creates a room of n questions and seats a guest in it. All
// messages emitted so far are drained.
func seatedRoom(t *testing.T, s *battle.Service, n int) (*battle.Room, *testConn, *testConn) {
	t.Helper()
	ctx := context.Background()
	host, guest := newTestConn("host"), newTestConn("guest")

	r, err := s.CreateRoom(ctx, host, battle.RoomParams{Player: hostPlayer, TotalQuestions: n})
	assertNil(t, err)
	_, err = s.JoinRoom(ctx, guest, r.Code(), guestPlayer)
	assertNil(t, err)

	drain(host)
	drain(guest)
	return r, host, guest
}

// playingRoom starts a seated room and drains battle_started.
func playingRoom(t *testing.T, s *battle.Service, n int) (*battle.Room, *testConn, *testConn) {
	t.Helper()
	r, host, guest := seatedRoom(t, s, n)
	assertNil(t, s.StartBattle(context.Background(), host))
	expect[api.BattleStartedResponse](t, host)
	expect[api.BattleStartedResponse](t, guest)
	return r, host, guest
}

func answer(t *testing.T, s *battle.Service, c *testConn, index int, letter string) {
	t.Helper()
	err := s.SubmitAnswer(context.Background(), c, battle.Answer{QuestionIndex: index, Letter: letter, TimeMs: 1500})
	assertNil(t, err)
}

func assertEqual(t *testing.T, want, got interface{}) {
	t.Helper()
	if want != got {
		t.Errorf("assert equal: got %v (type %v), want %v (type %v)", got, reflect.TypeOf(got), want, reflect.TypeOf(want))
	}
}

func assertNil(t *testing.T, got interface{}) {
	t.Helper()
	if !(got == nil || reflect.ValueOf(got).IsNil()) {
		t.Fatalf("assert nil: got %v", got)
	}
}

func assertErrorIs(t *testing.T, want, got error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("assert error: got %v, want %v", got, want)
	}
}

// eventually polls cond until it holds or two seconds elapse. Mock clock
// timers run their callbacks on their own goroutine.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
