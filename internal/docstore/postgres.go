package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"nexus-storefront/internal/domain"
)

// ChangeChannel is the LISTEN/NOTIFY channel fed by the documents trigger.
const ChangeChannel = "doc_changes"

// Postgres keeps documents as JSONB rows and turns NOTIFY events into
// snapshot callbacks. Listen must be running for subscribers to see changes
// made after their initial snapshot.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[string]map[int]*subscriber
	nextID int
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger, subs: make(map[string]map[int]*subscriber)}
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	const q = `
SELECT fields, updated_at
FROM documents
WHERE collection = $1 AND id = $2
`
	doc := Document{Collection: collection, ID: id}
	if err := s.pool.QueryRow(ctx, q, collection, id).Scan(&doc.Fields, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return doc, domain.ErrNotFound
		}
		s.logger.Error("docstore get", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return doc, err
	}
	doc.Exists = true
	return doc, nil
}

const upsertMerge = `
INSERT INTO documents (collection, id, fields, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (collection, id) DO UPDATE
SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
`

const upsertReplace = `
INSERT INTO documents (collection, id, fields, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (collection, id) DO UPDATE
SET fields = EXCLUDED.fields, updated_at = now()
`

func (s *Postgres) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	q := upsertReplace
	if merge {
		q = upsertMerge
	}
	if fields == nil {
		fields = map[string]any{}
	}
	if _, err := s.pool.Exec(ctx, q, collection, id, fields); err != nil {
		s.logger.Error("docstore set", zap.String("collection", collection), zap.String("id", id), zap.Bool("merge", merge), zap.Error(err))
		return err
	}
	return nil
}

func (s *Postgres) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := NewID()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	match := make(map[string]any, len(filters))
	for _, f := range filters {
		match[f.Field] = f.Value
	}
	const q = `
SELECT id, fields, updated_at
FROM documents
WHERE collection = $1 AND fields @> $2::jsonb
ORDER BY id
`
	rows, err := s.pool.Query(ctx, q, collection, match)
	if err != nil {
		s.logger.Error("docstore list", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Collection: collection, Exists: true}
		if err := rows.Scan(&doc.ID, &doc.Fields, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Commit applies every write in a single transaction.
func (s *Postgres) Commit(ctx context.Context, writes ...Write) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, w := range writes {
		q := upsertReplace
		if w.Merge {
			q = upsertMerge
		}
		fields := w.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		if _, err := tx.Exec(ctx, q, w.Collection, w.ID, fields); err != nil {
			return fmt.Errorf("commit %s/%s: %w", w.Collection, w.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("docstore commit", zap.Int("writes", len(writes)), zap.Error(err))
		return err
	}
	return nil
}

func (s *Postgres) Subscribe(ctx context.Context, collection, id string, onChange func(Document)) (Subscription, error) {
	sub := newSubscriber(onChange)
	key := subKey(collection, id)
	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]*subscriber)
	}
	s.nextID++
	handle := s.nextID
	s.subs[key][handle] = sub
	s.mu.Unlock()

	var once sync.Once
	stop := stopFunc(func() {
		once.Do(func() {
			sub.stop()
			s.mu.Lock()
			delete(s.subs[key], handle)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
			s.mu.Unlock()
		})
	})

	// Registered before the first read so no NOTIFY in between is lost.
	doc, err := s.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		stop()
		return nil, err
	}
	sub.deliver(doc, 0)
	return stop, nil
}

// Listen holds a dedicated connection on ChangeChannel and fans changes out
// to subscribers until ctx is cancelled. Lost connections are re-established.
func (s *Postgres) Listen(ctx context.Context) error {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("docstore listener dropped, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (s *Postgres) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	s.logger.Info("docstore listening", zap.String("channel", ChangeChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		collection, id, ok := strings.Cut(n.Payload, "/")
		if !ok {
			continue
		}
		s.dispatch(ctx, collection, id)
	}
}

func (s *Postgres) dispatch(ctx context.Context, collection, id string) {
	key := subKey(collection, id)
	s.mu.RLock()
	subs := make([]*subscriber, 0, len(s.subs[key]))
	for _, sub := range s.subs[key] {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	doc, err := s.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return
	}
	for _, sub := range subs {
		sub.deliver(doc, 0)
	}
}
