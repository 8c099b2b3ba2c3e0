// Package collection держит актуальный снимок BoM, синхронизированный с
// удалённым хранилищем, и проводит через него все изменения статусов.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/infra/metrics"
	"github.com/Spok95/bom-tracker/internal/remote"
	"go.uber.org/zap"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "error"
	default:
		return "loading"
	}
}

// State снимок состояния для презентационного слоя. Items заполнен только в PhaseReady.
type State struct {
	Phase    Phase
	Items    []bom.Item
	Err      error
	Version  uint64
	SyncedAt time.Time
}

var (
	ErrStarted   = errors.New("collection: already started")
	ErrNormalize = errors.New("collection: normalization failed")
)

// Normalizer превращает сырой снимок в позиции.
type Normalizer interface {
	Normalize(ctx context.Context, raw map[string]bom.RawRecord) ([]bom.Item, error)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(log *zap.Logger) Option { return func(s *Store) { s.log = log } }

type message struct {
	snap remote.Snapshot
	err  error
}

type Store struct {
	collection string
	feed       remote.Feed
	writer     remote.Writer
	norm       Normalizer
	now        func() time.Time
	log        *zap.Logger

	mailbox chan message // глубина 1, побеждает последний снимок

	mu       sync.Mutex
	state    State
	lastGood []bom.Item
	inflight context.CancelFunc
	watchers map[int]chan State
	nextW    int
	started  bool
	unsub    remote.Unsubscribe
	cancel   context.CancelFunc
	done     chan struct{}

	closeOnce sync.Once
}

func New(collection string, feed remote.Feed, writer remote.Writer, norm Normalizer, opts ...Option) *Store {
	s := &Store{
		collection: collection,
		feed:       feed,
		writer:     writer,
		norm:       norm,
		now:        time.Now,
		log:        zap.NewNop(),
		mailbox:    make(chan message, 1),
		watchers:   make(map[int]chan State),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("component", "collection"), zap.String("collection", collection))
	return s
}

// Start открывает ровно одну подписку на всё время жизни Store.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.consume(runCtx)

	unsub, err := s.feed.Subscribe(runCtx, s.onSnapshot, s.onError)
	if err != nil {
		cancel()
		s.fail(fmt.Errorf("subscribe: %w", err))
		return fmt.Errorf("subscribe %s: %w", s.collection, err)
	}

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	s.log.Info("subscription opened")
	return nil
}

// Close снимает подписку и останавливает обработку снимков.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsub, cancel, done := s.unsub, s.cancel, s.done
		s.mu.Unlock()

		if unsub != nil {
			unsub()
		}
		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
		s.mu.Lock()
		for id, ch := range s.watchers {
			close(ch)
			delete(s.watchers, id)
		}
		s.mu.Unlock()
		s.log.Info("subscription closed")
	})
}

// State возвращает копию текущего состояния.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Items позиции текущего снимка; nil, если снимок не готов.
func (s *Store) Items() []bom.Item {
	return s.State().Items
}

// Watch сразу отдаёт текущее состояние, затем каждое изменение (медленный
// читатель видит только последнее). cancel закрывает канал.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	ch <- s.stateLocked()
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			close(w)
			delete(s.watchers, id)
		}
	}
}

func (s *Store) stateLocked() State {
	st := s.state
	st.Items = slices.Clone(s.state.Items)
	return st
}

func (s *Store) onSnapshot(snap remote.Snapshot) {
	metrics.SnapshotsReceived.Inc()
	s.deliver(message{snap: snap})
}

func (s *Store) onError(err error) {
	metrics.SubscriptionErrors.Inc()
	s.deliver(message{err: err})
}

// deliver кладёт сообщение в ящик, вытесняя необработанное, и отменяет
// нормализацию, которая уже устарела.
func (s *Store) deliver(m message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight()
	}
	for {
		select {
		case s.mailbox <- m:
			return
		default:
		}
		select {
		case <-s.mailbox:
			metrics.SnapshotsSuperseded.Inc()
		default:
		}
	}
}

func (s *Store) consume(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.mailbox:
			s.process(ctx, m)
		}
	}
}

func (s *Store) process(ctx context.Context, m message) {
	if m.err != nil {
		s.log.Warn("subscription error", zap.Error(m.err))
		s.fail(m.err)
		return
	}

	nctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.inflight = cancel
	s.mu.Unlock()

	items, err := s.norm.Normalize(nctx, m.snap)

	s.mu.Lock()
	s.inflight = nil
	superseded := nctx.Err() != nil || len(s.mailbox) > 0
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if superseded {
		metrics.SnapshotsSuperseded.Inc()
		s.log.Debug("snapshot superseded before normalization finished")
		return
	}
	if err != nil {
		s.log.Error("normalization failed", zap.Error(err))
		s.fail(fmt.Errorf("%w: %v", ErrNormalize, err))
		return
	}
	s.ready(items)
}

func (s *Store) ready(items []bom.Item) {
	counts := make(map[bom.TransferStatus]int, len(bom.Statuses))
	for _, it := range items {
		counts[it.TransferStatus]++
	}
	for _, st := range bom.Statuses {
		metrics.Items.WithLabelValues(st.Code()).Set(float64(counts[st]))
	}

	s.mu.Lock()
	s.lastGood = items
	s.state = State{
		Phase:    PhaseReady,
		Items:    items,
		Version:  s.state.Version + 1,
		SyncedAt: s.now(),
	}
	s.notifyLocked()
	s.mu.Unlock()
	s.log.Debug("snapshot applied", zap.Int("items", len(items)))
}

// fail показывает ошибку и прячет устаревшие данные до следующего удачного снимка.
func (s *Store) fail(err error) {
	s.mu.Lock()
	s.state = State{
		Phase:    PhaseFailed,
		Err:      err,
		Version:  s.state.Version,
		SyncedAt: s.state.SyncedAt,
	}
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Store) notifyLocked() {
	st := s.stateLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// LastGood последний удачный снимок, даже если сейчас PhaseFailed.
func (s *Store) LastGood() []bom.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lastGood)
}
