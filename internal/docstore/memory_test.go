package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexus-storefront/internal/domain"
)

func TestMemorySetMergeKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"phone": "017", "role": "admin"}, false))
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"cart": []any{}}, true))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.True(t, doc.Exists)
	require.Equal(t, "017", doc.Fields["phone"])
	require.Equal(t, "admin", doc.Fields["role"])
	require.Contains(t, doc.Fields, "cart")
}

func TestMemorySetWithoutMergeReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"phone": "017"}, false))
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"address": "Dhaka"}, false))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.NotContains(t, doc.Fields, "phone")
}

func TestMemoryGetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "users", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, err := store.Add(ctx, "orders", map[string]any{"userId": "a"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "orders", map[string]any{"userId": "b"})
	require.NoError(t, err)

	docs, err := store.List(ctx, "orders", Where("userId", "a"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "a", docs[0].Fields["userId"])

	all, err := store.List(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemorySubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var seen []Document
	sub, err := store.Subscribe(ctx, "users", "u1", func(d Document) { seen = append(seen, d) })
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.False(t, seen[0].Exists)

	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"phone": "1"}, true))
	require.Len(t, seen, 2)
	require.True(t, seen[1].Exists)

	sub.Stop()
	sub.Stop()
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"phone": "2"}, true))
	require.Len(t, seen, 2)
}

func TestMemoryCommitAppliesAllWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"cart": []any{"x"}, "role": "user"}, false))

	err := store.Commit(ctx,
		Write{Collection: "users", ID: "u1", Fields: map[string]any{"cart": []any{}}, Merge: true},
		Write{Collection: "orders", ID: "o1", Fields: map[string]any{"status": "Pending"}},
	)
	require.NoError(t, err)

	user, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.Empty(t, user.Fields["cart"])
	require.Equal(t, "user", user.Fields["role"])

	order, err := store.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	require.Equal(t, "Pending", order.Fields["status"])
}

func TestEncodeDecodeRoundTripsTaggedStruct(t *testing.T) {
	type rec struct {
		Phone string `json:"phone"`
		Qty   int    `json:"qty"`
	}
	fields, err := Encode(rec{Phone: "017", Qty: 2})
	require.NoError(t, err)

	var out rec
	require.NoError(t, Decode(fields, &out))
	require.Equal(t, rec{Phone: "017", Qty: 2}, out)
}

func TestSubscriberDropsOlderSnapshot(t *testing.T) {
	var got []string
	sub := newSubscriber(func(d Document) { got = append(got, d.ID) })

	sub.deliver(Document{ID: "second"}, 2)
	sub.deliver(Document{ID: "first"}, 1)
	sub.deliver(Document{ID: "unordered"}, 0)
	sub.deliver(Document{ID: "third"}, 3)
	sub.stop()
	sub.deliver(Document{ID: "late"}, 4)
	sub.deliver(Document{ID: "late-unordered"}, 0)

	require.Equal(t, []string{"second", "unordered", "third"}, got)
}

func TestMemoryConcurrentWritersSettleOnLastWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var mu sync.Mutex
	var last Document
	sub, err := store.Subscribe(ctx, "users", "u1", func(d Document) {
		mu.Lock()
		last = d
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, store.Set(ctx, "users", "u1", map[string]any{"n": n}, true))
		}(i)
	}
	wg.Wait()

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, doc.Fields["n"], last.Fields["n"])
}
