// Package memory реализует remote-хранилище в памяти процесса (тесты, демо).
package memory

import (
	"context"
	"sync"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/remote"
)

var (
	_ remote.Feed   = (*Store)(nil)
	_ remote.Writer = (*Store)(nil)
)

type message struct {
	snap remote.Snapshot
	err  error
}

type subscriber struct {
	mailbox chan message // глубина 1, побеждает последний
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// push вызывается под Store.mu, поэтому производитель всегда один.
func (s *subscriber) push(m message) {
	for {
		select {
		case s.mailbox <- m:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

type Store struct {
	mu         sync.Mutex
	collection string
	docs       map[string]bom.RawRecord
	subs       map[int]*subscriber
	nextID     int
	writeErr   error
	writes     []remote.Updates
}

func New(collection string) *Store {
	return &Store{
		collection: collection,
		docs:       make(map[string]bom.RawRecord),
		subs:       make(map[int]*subscriber),
	}
}

func (s *Store) Collection() string { return s.collection }

// Put кладёт документ целиком (имитация внешнего создания позиции).
func (s *Store) Put(id string, doc bom.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = cloneDoc(doc)
	s.broadcastLocked(message{snap: s.snapshotLocked()})
}

// Delete удаляет документ (имитация внешнего удаления).
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	s.broadcastLocked(message{snap: s.snapshotLocked()})
}

// FailWrites заставляет все следующие WriteFields возвращать err; nil снимает сбой.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// EmitError отдаёт подписчикам ошибку транспорта.
func (s *Store) EmitError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(message{err: err})
}

// Writes история успешных и неуспешных вызовов WriteFields.
func (s *Store) Writes() []remote.Updates {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Updates, len(s.writes))
	for i, u := range s.writes {
		cp := make(remote.Updates, len(u))
		for k, v := range u {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Doc копия документа.
func (s *Store) Doc(id string) (bom.RawRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return cloneDoc(d), ok
}

func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) WriteFields(ctx context.Context, updates remote.Updates) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := make(remote.Updates, len(updates))
	for k, v := range updates {
		rec[k] = v
	}
	s.writes = append(s.writes, rec)

	if s.writeErr != nil {
		return s.writeErr
	}
	patches, err := remote.GroupByDocument(s.collection, updates)
	if err != nil {
		return err
	}
	for id, p := range patches {
		s.docs[id] = p.Apply(s.docs[id])
	}
	s.broadcastLocked(message{snap: s.snapshotLocked()})
	return nil
}

// Subscribe сразу отдаёт текущий снимок, затем после каждого изменения.
func (s *Store) Subscribe(ctx context.Context, onSnapshot func(remote.Snapshot), onError func(error)) (remote.Unsubscribe, error) {
	sub := &subscriber{
		mailbox: make(chan message, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.push(message{snap: s.snapshotLocked()})
	s.mu.Unlock()

	go func() {
		defer close(sub.stopped)
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case m := <-sub.mailbox:
				if m.err != nil {
					onError(m.err)
					continue
				}
				onSnapshot(m.snap)
			}
		}
	}()

	return func() {
		sub.once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
		<-sub.stopped
	}, nil
}

func (s *Store) broadcastLocked(m message) {
	for _, sub := range s.subs {
		sub.push(m)
	}
}

func (s *Store) snapshotLocked() remote.Snapshot {
	out := make(remote.Snapshot, len(s.docs))
	for id, d := range s.docs {
		out[id] = cloneDoc(d)
	}
	return out
}

func cloneDoc(d bom.RawRecord) bom.RawRecord {
	if d == nil {
		return nil
	}
	out := make(bom.RawRecord, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
