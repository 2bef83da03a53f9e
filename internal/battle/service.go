package battle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"medbattle-backend/internal/config"
	"medbattle-backend/internal/metrics"
	"medbattle-backend/internal/questions"

	"github.com/benbjohnson/clock"
	"github.com/lithammer/shortuuid/v3"
	"golang.org/x/sync/errgroup"
)

// Conn is an outbound message sink bound to one client connection.
// Implementations must be safe for concurrent use and comparable.
type Conn interface {
	Send(ctx context.Context, v any) error
}

// QuestionStore provides the question sequences of new rooms.
type QuestionStore interface {
	Get(id string) (questions.Question, bool)
	Sample(r *rand.Rand, n int, area string) ([]string, error)
}

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	codeRetries  = 50

	defaultHostName  = "Jogador 1"
	defaultGuestName = "Jogador 2"
)

type Options struct {
	// MinQuestions and MaxQuestions bound the requested question count.
	//
	// Defaults are 5 and 20.
	MinQuestions int
	MaxQuestions int

	// DefaultQuestions is used when a creation request carries no count.
	//
	// Default is 10.
	DefaultQuestions int

	// AdvanceDelay is the pause between question_complete and the next
	// question. Zero advances immediately.
	AdvanceDelay time.Duration

	// QuickMatchDelay is the pause before a quick-matched duel starts.
	// Zero starts the duel as soon as the guest is seated.
	QuickMatchDelay time.Duration

	// CompletedTTL is how long a completed room is kept before removal.
	// Zero removes it right after battle_complete.
	CompletedTTL time.Duration

	// ForfeitTimeout is how long a participant may stay disconnected from a
	// playing room before the opponent wins. Zero forfeits immediately.
	ForfeitTimeout time.Duration

	// MaxAge is the age after which the reaper removes a room whatever its
	// status.
	//
	// Default is 30 minutes.
	MaxAge time.Duration

	// ReapInterval is the period of RunReaper.
	//
	// Default is 5 minutes.
	ReapInterval time.Duration

	// SendTimeout bounds every outbound write.
	//
	// Default is 5 seconds.
	SendTimeout time.Duration

	// Secret signs rejoin tokens. A random secret is generated when empty,
	// tokens then do not survive a restart.
	Secret []byte

	Clock   clock.Clock
	Rand    *rand.Rand
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// OptionsFromConfig maps the battle configuration onto service options.
func OptionsFromConfig(cfg config.BattleConf) Options {
	return Options{
		MinQuestions:     cfg.MinQuestions,
		MaxQuestions:     cfg.MaxQuestions,
		DefaultQuestions: cfg.DefaultQuestions,
		AdvanceDelay:     cfg.AdvanceDelay,
		QuickMatchDelay:  cfg.QuickMatchDelay,
		CompletedTTL:     cfg.CompletedTTL,
		ForfeitTimeout:   cfg.ForfeitTimeout,
		MaxAge:           cfg.MaxAge,
		ReapInterval:     cfg.ReapInterval,
		SendTimeout:      cfg.SendTimeout,
	}
}

// Service owns every live room and the connection to room bindings.
//
// Lock order is room before service: s.mu may be taken while a room is
// locked, never the other way around.
type Service struct {
	opts    Options
	store   QuestionStore
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	secret  []byte

	randMu sync.Mutex
	rand   *rand.Rand

	mu       sync.RWMutex
	rooms    map[string]*Room
	codes    map[string]*Room
	sessions map[Conn]*Room
}

func NewService(store QuestionStore, opts Options) *Service {
	if opts.MinQuestions <= 0 {
		opts.MinQuestions = 5
	}
	if opts.MaxQuestions < opts.MinQuestions {
		opts.MaxQuestions = max(20, opts.MinQuestions)
	}
	if opts.DefaultQuestions <= 0 {
		opts.DefaultQuestions = 10
	}
	opts.DefaultQuestions = min(max(opts.DefaultQuestions, opts.MinQuestions), opts.MaxQuestions)
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * time.Minute
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = 5 * time.Minute
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Rand == nil {
		now := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(now, now>>1))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(shortuuid.New() + shortuuid.New())
	}

	return &Service{
		opts:     opts,
		store:    store,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		secret:   secret,
		rand:     opts.Rand,
		rooms:    map[string]*Room{},
		codes:    map[string]*Room{},
		sessions: map[Conn]*Room{},
	}
}

// Room returns a live room by id.
func (s *Service) Room(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// FindByCode returns the live room holding a join code. Codes compare
// case-insensitively.
func (s *Service) FindByCode(code string) (*Room, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.codes[code]
	return r, ok
}

// RoomOf returns the room a connection is bound to.
func (s *Service) RoomOf(conn Conn) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sessions[conn]
	return r, ok
}

// Len returns the number of live rooms.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Remove tears a room down: pending timers are stopped and every binding
// to it is dropped. It is a no-op for unknown ids.
func (s *Service) Remove(id string) {
	r, ok := s.Room(id)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.removeLocked(r)
}

// Close notifies every participant and removes all rooms.
func (s *Service) Close(ctx context.Context) {
	for _, r := range s.snapshot() {
		r.mu.Lock()
		if !r.closed {
			s.broadcast(ctx, r, roomClosed(ReasonShutdown))
			s.removeLocked(r)
		}
		r.mu.Unlock()
	}
}

// snapshot lists live rooms oldest first.
func (s *Service) snapshot() []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return rooms
}

// removeLocked must be called with r.mu held.
func (s *Service) removeLocked(r *Room) {
	if r.closed {
		return
	}
	r.closed = true
	r.cancelAll()

	s.mu.Lock()
	delete(s.rooms, r.id)
	if s.codes[r.code] == r {
		delete(s.codes, r.code)
	}
	for _, p := range []*participant{r.host, r.guest} {
		if p != nil && p.conn != nil && s.sessions[p.conn] == r {
			delete(s.sessions, p.conn)
		}
	}
	s.mu.Unlock()

	s.metrics.RoomRemoved()
	s.log.Debug("room removed", slog.String("room", r.id), slog.String("code", r.code))
}

func (s *Service) bind(conn Conn, r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn] = r
}

func (s *Service) unbind(conn Conn, r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[conn] == r {
		delete(s.sessions, conn)
	}
}

// lockRoomOf returns the room conn participates in, locked.
func (s *Service) lockRoomOf(conn Conn) (*Room, Role, error) {
	r, ok := s.RoomOf(conn)
	if !ok {
		return nil, 0, ErrNotInRoom
	}
	r.mu.Lock()
	role, ok := r.roleOf(conn)
	if r.closed || !ok {
		r.mu.Unlock()
		return nil, 0, ErrNotInRoom
	}
	return r, role, nil
}

// release drops the binding of conn to a completed room so it may enter a
// new one. Binding to a waiting or playing room is an error.
func (s *Service) release(conn Conn) error {
	r, ok := s.RoomOf(conn)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roleOf(conn)
	if r.closed || !ok {
		s.unbind(conn, r)
		return nil
	}
	if r.status != StatusCompleted {
		return ErrAlreadyInRoom
	}
	r.player(role).conn = nil
	s.unbind(conn, r)
	if len(r.conns()) == 0 {
		s.removeLocked(r)
	}
	return nil
}

// newCode must be called with s.mu held.
func (s *Service) newCode() (string, error) {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	b := make([]byte, codeLength)
	for range codeRetries {
		for i := range b {
			b[i] = codeAlphabet[s.rand.IntN(len(codeAlphabet))]
		}
		if _, exist := s.codes[string(b)]; !exist {
			return string(b), nil
		}
	}
	return "", ErrNoCodeAvailable
}

func (s *Service) sample(n int, area string) ([]string, error) {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.store.Sample(s.rand, n, area)
}

func (s *Service) clampQuestions(n int) int {
	if n == 0 {
		return s.opts.DefaultQuestions
	}
	return min(max(n, s.opts.MinQuestions), s.opts.MaxQuestions)
}

func (s *Service) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.SendTimeout)
}

// send writes a message to one connection. Delivery failures are logged,
// a dead connection is detected by its own read loop.
func (s *Service) send(ctx context.Context, conn Conn, v any) {
	if conn == nil {
		return
	}
	ctx, cancel := s.sendContext(ctx)
	defer cancel()
	if err := conn.Send(ctx, v); err != nil {
		s.log.WarnContext(ctx, "send failed", slog.Any("error", err))
	}
}

// broadcast writes a message to every connected participant of r.
func (s *Service) broadcast(ctx context.Context, r *Room, v any) {
	ctx, cancel := s.sendContext(ctx)
	defer cancel()

	var g errgroup.Group
	for _, conn := range r.conns() {
		g.Go(func() error {
			return conn.Send(ctx, v)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WarnContext(ctx, "broadcast failed", slog.String("room", r.id), slog.Any("error", err))
	}
}
