package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	userrepo "nexus-storefront/internal/repository/user"
)

type stubProducts struct {
	products map[string]domain.Product
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type recordingMetrics struct {
	ops []string
}

func (r *recordingMetrics) CartMutation(op string, _ error) {
	r.ops = append(r.ops, op)
}

func newTestService() (*Service, *recordingMetrics) {
	products := &stubProducts{products: map[string]domain.Product{
		"phone": {ID: "phone", Title: "Phone", Price: decimal.NewFromInt(1000), Category: "Electronics", Stock: 3},
		"gone":  {ID: "gone", Title: "Gone", Price: decimal.NewFromInt(10), Category: "Home", Stock: 0},
		"shirt": {ID: "shirt", Title: "Shirt", Price: decimal.NewFromInt(800), Category: "Fashion", Stock: 2, Sizes: map[string]int{"S": 0, "M": 2, "L": 0, "XL": 0}},
	}}
	rec := &recordingMetrics{}
	registry := NewRegistry(userrepo.NewDocstore(docstore.NewMemory(), nil), nil)
	return New(registry, products, rec), rec
}

func TestServiceAddItemRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name    string
		product string
		size    string
		want    error
	}{
		{"missing product", "nope", "", domain.ErrNotFound},
		{"out of stock", "gone", "", ErrOutOfStock},
		{"size required", "shirt", "", ErrSizeRequired},
		{"size sold out", "shirt", "S", ErrSizeUnavailable},
		{"unknown size", "shirt", "XXL", ErrUnknownSize},
	}
	for _, tc := range cases {
		if _, err := svc.AddItem(ctx, "sess", "u1", tc.product, tc.size); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestServiceAddItemSnapshot(t *testing.T) {
	svc, rec := newTestService()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "sess", "u1", "phone", "XL"); err != nil {
		t.Fatalf("add phone: %v", err)
	}
	snap, err := svc.AddItem(ctx, "sess", "u1", "shirt", "m")
	if err != nil {
		t.Fatalf("add shirt: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Lines[0].LineID != "phone" || snap.Lines[1].LineID != "shirt-M" {
		t.Fatalf("unexpected lines %+v", snap.Lines)
	}
	if snap.Count != 2 || !snap.Total.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("unexpected snapshot totals %+v", snap)
	}
	if len(rec.ops) != 2 || rec.ops[0] != "add" {
		t.Fatalf("expected recorded mutations, got %v", rec.ops)
	}
}

func TestServiceSignOutDropsSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.AddItem(ctx, "sess", "u1", "phone", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	svc.SignOut("sess")
	if svc.Registry().Len() != 0 {
		t.Fatalf("expected no live sessions")
	}

	snap, err := svc.Get(ctx, "sess", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Lines) != 1 {
		t.Fatalf("expected persisted cart to be reloaded on next sign-in, got %+v", snap.Lines)
	}
}

func TestRegistrySweepStopsIdleSessions(t *testing.T) {
	svc, _ := newTestService()
	reg := svc.Registry()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := reg.Get(ctx, "old", "u1"); err != nil {
		t.Fatalf("get old: %v", err)
	}
	now = now.Add(20 * time.Minute)
	if _, err := reg.Get(ctx, "fresh", "u2"); err != nil {
		t.Fatalf("get fresh: %v", err)
	}

	if n := reg.Sweep(10 * time.Minute); n != 1 {
		t.Fatalf("expected one idle session swept, got %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected fresh session to remain, got %d", reg.Len())
	}
}

func TestServiceWatchStreamsSnapshots(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var counts []int
	stop, err := svc.Watch(ctx, "s1", "u1", func(s Snapshot) { counts = append(counts, s.Count) })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := svc.AddItem(ctx, "s1", "u1", "phone", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddItem(ctx, "s1", "u1", "phone", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	stop()
	if _, err := svc.Clear(ctx, "s1", "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if len(counts) < 2 || counts[len(counts)-1] != 2 {
		t.Fatalf("expected snapshots ending at count 2 before stop, got %v", counts)
	}
}
