// Package postgres хранит документы коллекции в jsonb и рассылает изменения
// через LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/remote"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Channel канал, в который триггер bom_documents шлёт имя коллекции.
const Channel = "bom_documents_changed"

var (
	_ remote.Feed   = (*Store)(nil)
	_ remote.Writer = (*Store)(nil)
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	pool       *pgxpool.Pool
	collection string
	log        *zap.Logger

	backoffBase time.Duration
	backoffCap  time.Duration
}

type Option func(*Store)

// WithBackoff границы экспоненциальной паузы между переподключениями.
func WithBackoff(base, maxWait time.Duration) Option {
	return func(s *Store) {
		if base > 0 {
			s.backoffBase = base
		}
		if maxWait >= s.backoffBase {
			s.backoffCap = maxWait
		}
	}
}

func New(pool *pgxpool.Pool, collection string, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		collection:  collection,
		log:         log,
		backoffBase: 500 * time.Millisecond,
		backoffCap:  30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load текущий снимок коллекции.
func (s *Store) Load(ctx context.Context) (remote.Snapshot, error) {
	return s.load(ctx, s.pool)
}

func (s *Store) load(ctx context.Context, q querier) (remote.Snapshot, error) {
	rows, err := q.Query(ctx, `
		SELECT component_material, doc
		FROM bom_documents
		WHERE collection = $1
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	snap := remote.Snapshot{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		snap[id] = decodeDoc(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return snap, nil
}

// decodeDoc не-объект в jsonb превращается в пустой документ.
func decodeDoc(raw []byte) bom.RawRecord {
	var doc bom.RawRecord
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return bom.RawRecord{}
	}
	return doc
}

func (s *Store) Subscribe(ctx context.Context, onSnapshot func(remote.Snapshot), onError func(error)) (remote.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx, onSnapshot, onError)
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
		<-done
	}, nil
}

// run держит подписку до отмены ctx. Пауза растёт, пока не удаётся
// получить хотя бы один снимок; после рабочей сессии начинается заново.
func (s *Store) run(ctx context.Context, onSnapshot func(remote.Snapshot), onError func(error)) {
	for ctx.Err() == nil {
		backoff := retry.WithCappedDuration(s.backoffCap, retry.NewExponential(s.backoffBase))
		_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
			healthy, err := s.listen(ctx, onSnapshot)
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("subscription dropped", zap.String("collection", s.collection), zap.Bool("healthy", healthy), zap.Error(err))
			onError(err)
			if healthy {
				return err
			}
			return retry.RetryableError(err)
		})
	}
}

// listen возвращает healthy=true, если до сбоя был доставлен снимок.
func (s *Store) listen(ctx context.Context, onSnapshot func(remote.Snapshot)) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire: %w", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(cctx, "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}
	snap, err := s.load(ctx, conn)
	if err != nil {
		return false, err
	}
	onSnapshot(snap)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait notification: %w", err)
		}
		if n.Payload != s.collection {
			continue
		}
		snap, err := s.load(ctx, conn)
		if err != nil {
			return true, err
		}
		onSnapshot(snap)
	}
}

type docPatch struct {
	id     string
	set    string
	remove []string
}

func buildPatches(collection string, updates remote.Updates) ([]docPatch, error) {
	grouped, err := remote.GroupByDocument(collection, updates)
	if err != nil {
		return nil, err
	}
	out := make([]docPatch, 0, len(grouped))
	for id, p := range grouped {
		set, err := json.Marshal(p.Set)
		if err != nil {
			return nil, fmt.Errorf("encode patch %s: %w", id, err)
		}
		remove := p.Remove
		if remove == nil {
			// NULL::text[] обнулил бы весь документ
			remove = []string{}
		}
		out = append(out, docPatch{id: id, set: string(set), remove: remove})
	}
	// одинаковый порядок блокировок строк
	slices.SortFunc(out, func(a, b docPatch) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out, nil
}

// WriteFields все пути одного вызова пишутся одной транзакцией.
func (s *Store) WriteFields(ctx context.Context, updates remote.Updates) (err error) {
	patches, err := buildPatches(s.collection, updates)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) && err == nil {
			err = rbErr
		}
	}()

	for _, p := range patches {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bom_documents (collection, component_material, doc)
			VALUES ($1, $2, $3::jsonb - $4::text[])
			ON CONFLICT (collection, component_material) DO UPDATE
			SET doc = (bom_documents.doc || $3::jsonb) - $4::text[],
			    updated_at = now()
		`, s.collection, p.id, p.set, p.remove); err != nil {
			return fmt.Errorf("upsert %s: %w", p.id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
