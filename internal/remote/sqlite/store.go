// Package sqlite однофайловое хранилище документов для одиночной установки.
// Изменения обнаруживаются опросом счётчика ревизий коллекции.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/infra/db"
	"github.com/Spok95/bom-tracker/internal/remote"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // драйвер "sqlite"
)

var (
	_ remote.Feed   = (*Store)(nil)
	_ remote.Writer = (*Store)(nil)
)

type Store struct {
	db         *sql.DB
	collection string
	poll       time.Duration
	log        *zap.Logger
}

// Open создаёт файл при необходимости и накатывает миграции.
func Open(ctx context.Context, path, collection string, poll time.Duration, log *zap.Logger) (*Store, error) {
	if path == "" {
		path = "bom-tracker.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// один писатель, иначе SQLITE_BUSY при параллельных транзакциях
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(ctx, sqlDB, goose.DialectSQLite3, "sqlite", log); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Store{db: sqlDB, collection: collection, poll: poll, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Revision счётчик изменений коллекции; 0, пока записей не было.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT revision FROM bom_revisions WHERE collection = ?), 0)`,
		s.collection).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// Load ревизия и снимок, прочитанные одной транзакцией.
func (s *Store) Load(ctx context.Context) (int64, remote.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rev int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT revision FROM bom_revisions WHERE collection = ?), 0)`,
		s.collection).Scan(&rev); err != nil {
		return 0, nil, fmt.Errorf("select revision: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT component_material, doc FROM bom_documents WHERE collection = ?`, s.collection)
	if err != nil {
		return 0, nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap := remote.Snapshot{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return 0, nil, fmt.Errorf("scan: %w", err)
		}
		snap[id] = decodeDoc(raw)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("read documents: %w", err)
	}
	return rev, snap, nil
}

func decodeDoc(raw string) bom.RawRecord {
	var doc bom.RawRecord
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc == nil {
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

func (s *Store) run(ctx context.Context, onSnapshot func(remote.Snapshot), onError func(error)) {
	var last int64 = -1
	check := func() {
		rev, err := s.Revision(ctx)
		if err == nil && rev == last {
			return
		}
		var snap remote.Snapshot
		if err == nil {
			rev, snap, err = s.Load(ctx)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn("sqlite poll failed", zap.String("collection", s.collection), zap.Error(err))
			last = -1
			onError(err)
			return
		}
		last = rev
		onSnapshot(snap)
	}

	check()
	t := time.NewTicker(s.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// WriteFields применяет все патчи и поднимает ревизию одной транзакцией.
func (s *Store) WriteFields(ctx context.Context, updates remote.Updates) (err error) {
	patches, err := remote.GroupByDocument(s.collection, updates)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for id, p := range patches {
		var raw string
		doc := bom.RawRecord{}
		err := tx.QueryRowContext(ctx,
			`SELECT doc FROM bom_documents WHERE collection = ? AND component_material = ?`,
			s.collection, id).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("select %s: %w", id, err)
		default:
			doc = decodeDoc(raw)
		}

		data, err := json.Marshal(p.Apply(doc))
		if err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bom_documents (collection, component_material, doc)
			VALUES (?, ?, ?)
			ON CONFLICT (collection, component_material) DO UPDATE
			SET doc = excluded.doc,
			    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		`, s.collection, id, string(data)); err != nil {
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bom_revisions (collection, revision) VALUES (?, 1)
		ON CONFLICT (collection) DO UPDATE SET revision = revision + 1
	`, s.collection); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete удаляет позицию целиком (внешнее удаление из коллекции).
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bom_documents WHERE collection = ? AND component_material = ?`, s.collection, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bom_revisions (collection, revision) VALUES (?, 1)
		ON CONFLICT (collection) DO UPDATE SET revision = revision + 1
	`, s.collection); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	return tx.Commit()
}
