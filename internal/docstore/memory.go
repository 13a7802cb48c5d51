package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nexus-storefront/internal/domain"
)

type memoryDoc struct {
	fields    map[string]any
	updatedAt time.Time
}

// change is a snapshot taken under the write lock together with the
// subscribers to hand it to.
type change struct {
	doc  Document
	seq  uint64
	subs []*subscriber
}

func (c change) send() {
	for _, s := range c.subs {
		s.deliver(c.doc, c.seq)
	}
}

// Memory is an in-process Store. Change callbacks run synchronously on the
// writing goroutine after the write is visible. Concurrent writers to one
// document may finish delivering out of order; subscribers drop the older
// snapshot so they always settle on the last write.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[string]memoryDoc
	subs   map[string]map[int]*subscriber
	nextID int
	seq    uint64
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]memoryDoc),
		subs: make(map[string]map[int]*subscriber),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func subKey(collection, id string) string {
	return collection + "/" + id
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(collection, id)
}

func (m *Memory) getLocked(collection, id string) (Document, error) {
	d, ok := m.docs[collection][id]
	if !ok {
		return Document{Collection: collection, ID: id}, domain.ErrNotFound
	}
	return Document{
		Collection: collection,
		ID:         id,
		Fields:     cloneFields(d.fields),
		Exists:     true,
		UpdatedAt:  d.updatedAt,
	}, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, fields map[string]any, merge bool) error {
	m.mu.Lock()
	m.setLocked(collection, id, fields, merge)
	c := m.changedLocked(collection, id)
	m.mu.Unlock()
	c.send()
	return nil
}

func (m *Memory) setLocked(collection, id string, fields map[string]any, merge bool) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]memoryDoc)
	}
	next := map[string]any{}
	if existing, ok := m.docs[collection][id]; ok && merge {
		next = cloneFields(existing.fields)
	}
	for k, v := range fields {
		next[k] = v
	}
	m.docs[collection][id] = memoryDoc{fields: next, updatedAt: m.now()}
}

func (m *Memory) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := NewID()
	return id, m.Set(ctx, collection, id, fields, false)
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	if _, ok := m.docs[collection][id]; !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(m.docs[collection], id)
	c := m.changedLocked(collection, id)
	m.mu.Unlock()
	c.send()
	return nil
}

func (m *Memory) List(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for id, d := range m.docs[collection] {
		if !matches(d.fields, filters) {
			continue
		}
		out = append(out, Document{
			Collection: collection,
			ID:         id,
			Fields:     cloneFields(d.fields),
			Exists:     true,
			UpdatedAt:  d.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func (m *Memory) Subscribe(_ context.Context, collection, id string, onChange func(Document)) (Subscription, error) {
	sub := newSubscriber(onChange)
	key := subKey(collection, id)

	m.mu.Lock()
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]*subscriber)
	}
	m.nextID++
	handle := m.nextID
	m.subs[key][handle] = sub
	snap, _ := m.getLocked(collection, id)
	seq := m.seq
	m.mu.Unlock()

	sub.deliver(snap, seq)

	var once sync.Once
	return stopFunc(func() {
		once.Do(func() {
			sub.stop()
			m.mu.Lock()
			delete(m.subs[key], handle)
			m.mu.Unlock()
		})
	}), nil
}

func (m *Memory) Commit(_ context.Context, writes ...Write) error {
	m.mu.Lock()
	for _, w := range writes {
		m.setLocked(w.Collection, w.ID, w.Fields, w.Merge)
	}
	changes := make([]change, 0, len(writes))
	for _, w := range writes {
		changes = append(changes, m.changedLocked(w.Collection, w.ID))
	}
	m.mu.Unlock()
	for _, c := range changes {
		c.send()
	}
	return nil
}

// changedLocked stamps the current state of a document with the next
// sequence number. Callers hold m.mu for writing.
func (m *Memory) changedLocked(collection, id string) change {
	m.seq++
	snap, _ := m.getLocked(collection, id)
	key := subKey(collection, id)
	subs := make([]*subscriber, 0, len(m.subs[key]))
	for _, s := range m.subs[key] {
		subs = append(subs, s)
	}
	return change{doc: snap, seq: m.seq, subs: subs}
}
