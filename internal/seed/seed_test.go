package seed

import (
	"context"
	"testing"

	"nexus-storefront/internal/docstore"
	productrepo "nexus-storefront/internal/repository/product"
)

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := productrepo.NewDocstore(docstore.NewMemory(), nil)

	n, err := Apply(ctx, repo)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if n != len(demoCatalog()) {
		t.Fatalf("expected %d products, got %d", len(demoCatalog()), n)
	}

	n, err = Apply(ctx, repo)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no new products on rerun, got %d", n)
	}

	panjabi, err := repo.GetByID(ctx, "demo-panjabi")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if panjabi.Stock != 15 {
		t.Fatalf("expected stock summed from sizes, got %d", panjabi.Stock)
	}
}
