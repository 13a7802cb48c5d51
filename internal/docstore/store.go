package docstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is one record of a collection. Fields holds the decoded top level
// map; Exists is false for snapshots of missing or deleted records.
type Document struct {
	Collection string
	ID         string
	Fields     map[string]any
	Exists     bool
	UpdatedAt  time.Time
}

// Filter is an equality predicate on a top level field.
type Filter struct {
	Field string
	Value any
}

func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Write is one entry of an atomic Commit.
type Write struct {
	Collection string
	ID         string
	Fields     map[string]any
	Merge      bool
}

// Subscription is a live change feed handle. Stop is idempotent.
type Subscription interface {
	Stop()
}

// Store is the document database the storefront persists into.
//
// Set with merge replaces only the top level fields given and keeps the rest.
// Subscribe delivers the current snapshot once and then every later change
// until Stop is called; callbacks for one subscription never run concurrently.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Subscribe(ctx context.Context, collection, id string, onChange func(Document)) (Subscription, error)
	Commit(ctx context.Context, writes ...Write) error
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

type stopFunc func()

func (f stopFunc) Stop() { f() }
