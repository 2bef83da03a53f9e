package battle

import (
	"sync"
	"time"

	"medbattle-backend/api"

	"github.com/benbjohnson/clock"
)

type Status int

const (
	StatusWaiting Status = iota
	StatusPlaying
	StatusCompleted
)

var statusToString = map[Status]string{
	StatusWaiting:   "waiting",
	StatusPlaying:   "playing",
	StatusCompleted: "completed",
}

func (s Status) String() string {
	if str, ok := statusToString[s]; ok {
		return str
	}
	return "unknown"
}

type Role int

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

func (r Role) other() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

type participant struct {
	sessionID string
	name      string
	conn      Conn
	answers   map[int]api.AnswerRecord
	score     int
}

func newParticipant(sessionID, name string, conn Conn) *participant {
	return &participant{
		sessionID: sessionID,
		name:      name,
		conn:      conn,
		answers:   map[int]api.AnswerRecord{},
	}
}

type timerKind int

const (
	timerAutoStart timerKind = iota
	timerAdvance
	timerForfeit
	timerRemove
)

type roomTimer struct {
	timer *clock.Timer
	seq   uint64
}

// Room is one duel between a host and at most one guest.
//
// Multiple goroutines may invoke methods on a Room simultaneously. Every
// state transition runs with mu held, including timer callbacks.
type Room struct {
	id             string
	code           string
	created        time.Time
	totalQuestions int
	area           string
	questionIDs    []string

	// validity stamps rejoin tokens. Codes are reused once a room is
	// reaped, the stamp keeps an old token from matching a new room.
	validity string

	mu       sync.Mutex
	status   Status
	started  time.Time
	cursor   int
	host     *participant
	guest    *participant
	timers   map[timerKind]roomTimer
	timerSeq uint64
	closed   bool
}

func (r *Room) ID() string {
	return r.id
}

// Code returns the upper-cased join code.
func (r *Room) Code() string {
	return r.code
}

func (r *Room) CreationDate() time.Time {
	return r.created
}

func (r *Room) TotalQuestions() int {
	return r.totalQuestions
}

// Area returns the topic filter requested at creation, or "".
func (r *Room) Area() string {
	return r.area
}

// QuestionIDs returns a copy of the fixed question sequence.
func (r *Room) QuestionIDs() []string {
	ids := make([]string, len(r.questionIDs))
	copy(ids, r.questionIDs)
	return ids
}

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) StartDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Cursor returns the index of the question currently in play.
func (r *Room) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Room) Scores() (host, guest int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guest != nil {
		guest = r.guest.score
	}
	return r.host.score, guest
}

// SessionID returns the session bound to a role, or "" for an empty slot.
func (r *Room) SessionID(role Role) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.player(role); p != nil {
		return p.sessionID
	}
	return ""
}

// Answer returns the committed answer of role for a question index.
func (r *Room) Answer(role Role, index int) (api.AnswerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(role)
	if p == nil {
		return api.AnswerRecord{}, false
	}
	rec, ok := p.answers[index]
	return rec, ok
}

// Answers returns the number of answer records held by role.
func (r *Room) Answers(role Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.player(role); p != nil {
		return len(p.answers)
	}
	return 0
}

// CorrectAnswers counts the correct answer records held by role.
func (r *Room) CorrectAnswers(role Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player(role)
	if p == nil {
		return 0
	}
	n := 0
	for _, rec := range p.answers {
		if rec.Correct {
			n++
		}
	}
	return n
}

// Closed reports whether the room has been torn down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// PendingTimers returns the number of timers still scheduled on the room.
func (r *Room) PendingTimers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Room) player(role Role) *participant {
	if role == RoleHost {
		return r.host
	}
	return r.guest
}

func (r *Room) roleOf(conn Conn) (Role, bool) {
	if conn == nil {
		return 0, false
	}
	if r.host != nil && r.host.conn == conn {
		return RoleHost, true
	}
	if r.guest != nil && r.guest.conn == conn {
		return RoleGuest, true
	}
	return 0, false
}

func (r *Room) roleBySession(sessionID string) (Role, bool) {
	if r.host != nil && r.host.sessionID == sessionID {
		return RoleHost, true
	}
	if r.guest != nil && r.guest.sessionID == sessionID {
		return RoleGuest, true
	}
	return 0, false
}

func (r *Room) conns() []Conn {
	conns := make([]Conn, 0, 2)
	for _, p := range []*participant{r.host, r.guest} {
		if p != nil && p.conn != nil {
			conns = append(conns, p.conn)
		}
	}
	return conns
}

func (r *Room) guestName() string {
	if r.guest == nil {
		return ""
	}
	return r.guest.name
}

func (r *Room) guestScore() int {
	if r.guest == nil {
		return 0
	}
	return r.guest.score
}

func (r *Room) specialty() *string {
	if r.area == "" {
		return nil
	}
	area := r.area
	return &area
}

func (r *Room) winner() api.Winner {
	host, guest := r.host.score, r.guestScore()
	switch {
	case host > guest:
		return api.WinnerHost
	case guest > host:
		return api.WinnerGuest
	default:
		return api.WinnerDraw
	}
}

// schedule arms a timer of the given kind, replacing any pending one.
// fn runs with mu held and never after the room is closed.
func (r *Room) schedule(clk clock.Clock, kind timerKind, d time.Duration, fn func()) {
	r.cancel(kind)
	if d <= 0 {
		fn()
		return
	}

	r.timerSeq++
	seq := r.timerSeq
	t := clk.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		// A stopped timer may still fire if it raced with cancel.
		if cur, ok := r.timers[kind]; !ok || cur.seq != seq || r.closed {
			return
		}
		delete(r.timers, kind)
		fn()
	})
	r.timers[kind] = roomTimer{timer: t, seq: seq}
}

func (r *Room) cancel(kind timerKind) {
	if t, ok := r.timers[kind]; ok {
		t.timer.Stop()
		delete(r.timers, kind)
	}
}

func (r *Room) cancelAll() {
	for kind := range r.timers {
		r.cancel(kind)
	}
}
