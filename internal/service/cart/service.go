package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/domain"
)

var (
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrSizeRequired    = errors.New("please select a size")
	ErrSizeUnavailable = errors.New("selected size is out of stock")
	ErrUnknownSize     = errors.New("unknown size")
)

type productGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type mutationRecorder interface {
	CartMutation(op string, err error)
}

// Snapshot is the cart view returned to clients.
type Snapshot struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
}

func SnapshotOf(lines []domain.CartLine) Snapshot {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return Snapshot{Lines: lines, Total: domain.LinesTotal(lines), Count: count}
}

// Service resolves catalog products and applies the storefront's purchase
// rules before delegating to the session's Manager.
type Service struct {
	registry *Registry
	products productGetter
	metrics  mutationRecorder
}

func New(registry *Registry, products productGetter, metrics mutationRecorder) *Service {
	return &Service{registry: registry, products: products, metrics: metrics}
}

func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) Manager(ctx context.Context, sessionKey, uid string) (*Manager, error) {
	return s.registry.Get(ctx, sessionKey, uid)
}

func (s *Service) Get(ctx context.Context, sessionKey, uid string) (Snapshot, error) {
	m, err := s.registry.Get(ctx, sessionKey, uid)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotOf(m.Lines()), nil
}

// AddItem adds one unit of productID (in size, for sized products).
func (s *Service) AddItem(ctx context.Context, sessionKey, uid, productID, size string) (Snapshot, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	size = strings.ToUpper(strings.TrimSpace(size))
	if err := checkPurchasable(*product, size); err != nil {
		return Snapshot{}, err
	}
	if !product.Sized() {
		size = ""
	}
	return s.apply(ctx, "add", sessionKey, uid, func(m *Manager) error {
		return m.Add(ctx, *product, size)
	})
}

func checkPurchasable(p domain.Product, size string) error {
	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	if !p.Sized() {
		return nil
	}
	if size == "" {
		return ErrSizeRequired
	}
	if _, ok := p.Sizes[size]; !ok {
		return ErrUnknownSize
	}
	if p.SizeStock(size) <= 0 {
		return ErrSizeUnavailable
	}
	return nil
}

func (s *Service) Decrease(ctx context.Context, sessionKey, uid, lineID string) (Snapshot, error) {
	return s.apply(ctx, "decrease", sessionKey, uid, func(m *Manager) error {
		return m.Decrease(ctx, lineID)
	})
}

func (s *Service) Remove(ctx context.Context, sessionKey, uid, lineID string) (Snapshot, error) {
	return s.apply(ctx, "remove", sessionKey, uid, func(m *Manager) error {
		return m.Remove(ctx, lineID)
	})
}

func (s *Service) Clear(ctx context.Context, sessionKey, uid string) (Snapshot, error) {
	return s.apply(ctx, "clear", sessionKey, uid, func(m *Manager) error {
		return m.Clear(ctx)
	})
}

// Watch calls fn with a fresh snapshot on every change to the session's
// cart until the returned func is called.
func (s *Service) Watch(ctx context.Context, sessionKey, uid string, fn func(Snapshot)) (func(), error) {
	m, err := s.registry.Get(ctx, sessionKey, uid)
	if err != nil {
		return nil, err
	}
	return m.Watch(func(lines []domain.CartLine) { fn(SnapshotOf(lines)) }), nil
}

func (s *Service) SignOut(sessionKey string) {
	s.registry.SignOut(sessionKey)
}

func (s *Service) apply(ctx context.Context, op, sessionKey, uid string, fn func(*Manager) error) (Snapshot, error) {
	m, err := s.registry.Get(ctx, sessionKey, uid)
	if err != nil {
		return Snapshot{}, err
	}
	err = fn(m)
	if s.metrics != nil {
		s.metrics.CartMutation(op, err)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotOf(m.Lines()), nil
}
