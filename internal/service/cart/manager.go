package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
)

// ErrSignedOut is returned for mutations on a manager whose session ended.
var ErrSignedOut = errors.New("cart session signed out")

type cartStore interface {
	LoadCart(ctx context.Context, uid string) ([]domain.CartLine, bool, error)
	SaveCart(ctx context.Context, uid string, lines []domain.CartLine) error
	WatchCart(ctx context.Context, uid string, onChange func([]domain.CartLine)) (docstore.Subscription, error)
}

// Manager owns the in-memory mirror of one signed-in user's cart.
//
// Every mutation computes the new line list, persists it with a merge write
// and only then replaces the mirror. A standing subscription to the user
// record overwrites the mirror whenever the record changes elsewhere, so the
// last write to the store wins.
type Manager struct {
	uid    string
	store  cartStore
	logger *zap.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	lines     []domain.CartLine
	sub       docstore.Subscription
	signedOut bool
	watchers  map[int]func([]domain.CartLine)
	nextWatch int
}

func NewManager(uid string, store cartStore, logger *zap.Logger) *Manager {
	return &Manager{
		uid:      uid,
		store:    store,
		logger:   logging.Or(logger).With(zap.String("uid", uid)),
		watchers: make(map[int]func([]domain.CartLine)),
	}
}

func (m *Manager) UserID() string { return m.uid }

// Start loads the persisted cart, creating an empty one on first sign-in,
// and opens the change subscription.
func (m *Manager) Start(ctx context.Context) error {
	lines, exists, err := m.store.LoadCart(ctx, m.uid)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if !exists {
		if err := m.store.SaveCart(ctx, m.uid, []domain.CartLine{}); err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		m.logger.Info("cart created")
	}
	m.setLines(lines)

	sub, err := m.store.WatchCart(ctx, m.uid, m.setLines)
	if err != nil {
		return fmt.Errorf("watch cart: %w", err)
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return nil
}

// Stop cancels the change subscription. The mirror is left as is.
func (m *Manager) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

// SignOut stops listening and empties the mirror without touching the store.
func (m *Manager) SignOut() {
	m.Stop()
	m.mu.Lock()
	m.signedOut = true
	m.mu.Unlock()
	m.setLines(nil)
}

// Reset empties the mirror locally after the store already holds an empty
// cart, as after a committed checkout.
func (m *Manager) Reset() {
	m.setLines(nil)
}

// Lines returns a copy of the mirrored lines.
func (m *Manager) Lines() []domain.CartLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CloneLines(m.lines)
}

func (m *Manager) Total() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.LinesTotal(m.lines)
}

// Watch registers fn to receive every new mirror state. The returned func
// unregisters it.
func (m *Manager) Watch(fn func([]domain.CartLine)) func() {
	m.mu.Lock()
	m.nextWatch++
	id := m.nextWatch
	m.watchers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) setLines(lines []domain.CartLine) {
	m.mu.Lock()
	if m.signedOut && lines != nil {
		m.mu.Unlock()
		return
	}
	m.lines = domain.CloneLines(lines)
	watchers := make([]func([]domain.CartLine), 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	snapshot := domain.CloneLines(m.lines)
	m.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}

// Add merges product into the cart: an existing line with the same line id
// gains one unit, otherwise a new line of quantity one is appended with a
// snapshot of the product's title, price and image.
func (m *Manager) Add(ctx context.Context, product domain.Product, size string) error {
	lineID := domain.LineID(product.ID, size)
	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].LineID == lineID {
				lines[i].Quantity++
				return lines, true
			}
		}
		title := product.Title
		if size != "" {
			title = fmt.Sprintf("%s (Size: %s)", product.Title, size)
		}
		return append(lines, domain.CartLine{
			LineID:    lineID,
			ProductID: product.ID,
			Title:     title,
			Price:     product.Price,
			Image:     product.Image,
			Category:  product.Category,
			Size:      size,
			Quantity:  1,
		}), true
	})
}

// Decrease removes one unit but never drops a line below one. Absent lines
// and lines already at one are left alone and nothing is written.
func (m *Manager) Decrease(ctx context.Context, lineID string) error {
	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].LineID == lineID {
				if lines[i].Quantity <= 1 {
					return lines, false
				}
				lines[i].Quantity--
				return lines, true
			}
		}
		return lines, false
	})
}

// Remove deletes the line whatever its quantity.
func (m *Manager) Remove(ctx context.Context, lineID string) error {
	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].LineID == lineID {
				return append(lines[:i], lines[i+1:]...), true
			}
		}
		return lines, false
	})
}

func (m *Manager) Clear(ctx context.Context) error {
	return m.mutate(ctx, func([]domain.CartLine) ([]domain.CartLine, bool) {
		return []domain.CartLine{}, true
	})
}

func (m *Manager) mutate(ctx context.Context, fn func([]domain.CartLine) ([]domain.CartLine, bool)) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	signedOut := m.signedOut
	current := domain.CloneLines(m.lines)
	m.mu.RUnlock()
	if signedOut {
		return ErrSignedOut
	}

	next, changed := fn(current)
	if !changed {
		return nil
	}
	if err := m.store.SaveCart(ctx, m.uid, next); err != nil {
		m.logger.Error("persist cart", zap.Error(err))
		return fmt.Errorf("persist cart: %w", err)
	}
	m.setLines(next)
	return nil
}
