package product

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	productrepo "nexus-storefront/internal/repository/product"
	reviewrepo "nexus-storefront/internal/repository/review"
	userrepo "nexus-storefront/internal/repository/user"
)

func newTestService(t *testing.T) (*Service, userrepo.Repository) {
	t.Helper()
	mem := docstore.NewMemory()
	users := userrepo.NewDocstore(mem, nil)
	return New(productrepo.NewDocstore(mem, nil), reviewrepo.NewDocstore(mem, nil), users, nil), users
}

func mustCreate(t *testing.T, svc *Service, p domain.Product) *domain.Product {
	t.Helper()
	created, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("create %s: %v", p.Title, err)
	}
	return created
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	mustCreate(t, svc, domain.Product{Title: "Galaxy Phone", Price: dec("45000"), Category: "Electronics", SubCategory: "Smartphones", Stock: 4})
	mustCreate(t, svc, domain.Product{Title: "Gaming Mouse", Price: dec("2500"), Category: "Electronics", SubCategory: "Mice", Stock: 10})
	mustCreate(t, svc, domain.Product{Title: "Linen Shirt", Price: dec("1800"), Category: "Fashion", SubCategory: "Men's Clothing", Sizes: map[string]int{"M": 3, "L": 2}})
	mustCreate(t, svc, domain.Product{Title: "Desk Lamp", Price: dec("900"), Category: "Home", SubCategory: "Lighting", Stock: 7})
}

func titles(ps []domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	seedCatalog(t, svc)
	ctx := context.Background()
	lo, hi := dec("1000"), dec("3000")

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"search sub-category", Filter{Search: "  MICE ", Sort: SortPriceLow}, []string{"Gaming Mouse"}},
		{"search category", Filter{Search: "fashion"}, []string{"Linen Shirt"}},
		{"category", Filter{Category: "Electronics", Sort: SortPriceHigh}, []string{"Galaxy Phone", "Gaming Mouse"}},
		{"all category", Filter{Category: "All", Sort: SortPriceLow}, []string{"Desk Lamp", "Linen Shirt", "Gaming Mouse", "Galaxy Phone"}},
		{"price range", Filter{MinPrice: &lo, MaxPrice: &hi, Sort: SortPriceLow}, []string{"Linen Shirt", "Gaming Mouse"}},
		{"no match", Filter{Search: "sofa"}, []string{}},
	}
	for _, tc := range cases {
		got, err := svc.List(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: list: %v", tc.name, err)
		}
		names := titles(got)
		if len(names) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, names, tc.want)
		}
		for i := range names {
			if names[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.name, names, tc.want)
			}
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	bad := []domain.Product{
		{Title: "  ", Price: dec("10")},
		{Title: "Negative", Price: dec("-1")},
		{Title: "Unknown", Price: dec("1"), Category: "Garden"},
		{Title: "Mismatch", Price: dec("1"), Category: "Home", SubCategory: "Laptops"},
		{Title: "Stock", Price: dec("1"), Stock: -2},
		{Title: "Sizes", Price: dec("1"), Category: "Fashion", Sizes: map[string]int{"S": -1}},
	}
	for _, p := range bad {
		if _, err := svc.Create(context.Background(), p); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", p.Title, err)
		}
	}
}

func TestCreateSizedProductSumsStock(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, domain.Product{Title: "Sneakers", Price: dec("3000"), Category: "Fashion", SubCategory: "Shoes", Stock: 99, Sizes: map[string]int{"S": 1, "M": 2, "L": 3}})
	if p.Stock != 6 {
		t.Fatalf("expected stock 6, got %d", p.Stock)
	}
	if _, ok := p.Sizes["XL"]; !ok {
		t.Fatalf("expected missing standard sizes to be filled: %v", p.Sizes)
	}

	lamp := mustCreate(t, svc, domain.Product{Title: "Lamp", Price: dec("10"), Category: "Home", Sizes: map[string]int{"S": 1}, Stock: 3})
	if lamp.Sizes != nil || lamp.Stock != 3 || lamp.SubCategory != "Furniture" {
		t.Fatalf("unexpected unsized product %+v", lamp)
	}
}

func TestUpdateKeepsRatingAndCreatedAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, domain.Product{Title: "Lamp", Price: dec("10"), Category: "Home"})
	if _, err := svc.AddReview(ctx, domain.Identity{UID: "u1", Email: "ana@example.com"}, p.ID, ReviewInput{Rating: 4, Text: "Bright and sturdy lamp"}); err != nil {
		t.Fatalf("add review: %v", err)
	}

	updated, err := svc.Update(ctx, p.ID, domain.Product{Title: "Desk Lamp", Price: dec("12"), Category: "Home", Rating: dec("1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != p.ID || !updated.CreatedAt.Equal(p.CreatedAt) || !updated.Rating.Equal(dec("4")) {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if _, err := svc.Update(ctx, "missing", domain.Product{Title: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddReview(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc, domain.Product{Title: "Lamp", Price: dec("10"), Category: "Home"})
	ana := domain.Identity{UID: "u1", Email: "ana@example.com"}

	if _, err := svc.AddReview(ctx, ana, p.ID, ReviewInput{Rating: 0, Text: "Long enough text"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected rating validation, got %v", err)
	}
	if _, err := svc.AddReview(ctx, ana, p.ID, ReviewInput{Rating: 5, Text: "   too short   "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected text validation, got %v", err)
	}
	if _, err := svc.AddReview(ctx, ana, "missing", ReviewInput{Rating: 5, Text: "Long enough text"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	rev, err := svc.AddReview(ctx, ana, p.ID, ReviewInput{Rating: 5, Text: "  Lovely warm light  "})
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if rev.UserName != "ana" || rev.Text != "Lovely warm light" {
		t.Fatalf("expected email local part and trimmed text, got %+v", rev)
	}

	username := "bob_builds"
	if err := users.UpdateProfile(ctx, "u2", userrepo.ProfileUpdate{Username: &username}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	rev, err = svc.AddReview(ctx, domain.Identity{UID: "u2", Email: "bob@example.com"}, p.ID, ReviewInput{Rating: 2, Text: "Flickers at night"})
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if rev.UserName != "bob_builds" {
		t.Fatalf("expected profile username, got %q", rev.UserName)
	}

	list, err := svc.ListReviews(ctx, p.ID)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if list.Count != 2 || !list.Average.Equal(dec("3.5")) {
		t.Fatalf("unexpected review summary %+v", list)
	}
	stored, _ := svc.Get(ctx, p.ID)
	if !stored.Rating.Equal(dec("3.5")) {
		t.Fatalf("expected product rating 3.5, got %s", stored.Rating)
	}

	rated, _ := svc.List(ctx, Filter{MinRating: dec("4")})
	if len(rated) != 0 {
		t.Fatalf("expected min rating filter to exclude product, got %v", titles(rated))
	}
}

func TestAverageRatingRounds(t *testing.T) {
	got := averageRating([]domain.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}})
	if !got.Equal(dec("4.3")) {
		t.Fatalf("expected 4.3, got %s", got)
	}
	if !averageRating(nil).IsZero() {
		t.Fatalf("expected zero for no reviews")
	}
}
