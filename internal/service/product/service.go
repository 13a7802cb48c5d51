package product

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
	userrepo "nexus-storefront/internal/repository/user"
)

type productRepo interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type reviewRepo interface {
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
	Create(ctx context.Context, r domain.Review) (*domain.Review, error)
}

type profileGetter interface {
	Get(ctx context.Context, uid string) (*userrepo.Record, error)
}

type Sort string

const (
	SortFeatured  Sort = "featured"
	SortPriceLow  Sort = "price-low"
	SortPriceHigh Sort = "price-high"
)

// Filter narrows the catalog listing. Zero values disable a criterion.
type Filter struct {
	Search    string
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating decimal.Decimal
	Sort      Sort
}

const minReviewLength = 10

type Service struct {
	repo     productRepo
	reviews  reviewRepo
	profiles profileGetter
	logger   *zap.Logger
	now      func() time.Time
}

func New(repo productRepo, reviews reviewRepo, profiles profileGetter, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		reviews:  reviews,
		profiles: profiles,
		logger:   logging.Or(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if query != "" && !matches(p, query) {
			continue
		}
		if f.Category != "" && f.Category != "All" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.MinRating.IsPositive() && p.Rating.LessThan(f.MinRating) {
			continue
		}
		out = append(out, p)
	}
	switch f.Sort {
	case SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	}
	return out, nil
}

func matches(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Title), query) ||
		strings.Contains(strings.ToLower(p.Category), query) ||
		strings.Contains(strings.ToLower(p.SubCategory), query)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Categories() []domain.Category {
	return domain.CategoryTree
}

func (s *Service) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = ""
	if err := validate(&p); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, p)
}

// Update replaces the editable fields of an existing product. Rating and
// creation time are kept.
func (s *Service) Update(ctx context.Context, id string, p domain.Product) (*domain.Product, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.Rating = existing.Rating
	p.CreatedAt = existing.CreatedAt
	return s.repo.Upsert(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validate(p *domain.Product) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if p.Category != "" {
		if _, ok := domain.FindCategory(p.Category); !ok {
			return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, p.Category)
		}
	}
	if p.SubCategory != "" && !domain.ValidSubCategory(p.Category, p.SubCategory) {
		return fmt.Errorf("%w: %q is not a sub-category of %q", domain.ErrInvalidInput, p.SubCategory, p.Category)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidInput)
	}
	for size, n := range p.Sizes {
		if n < 0 {
			return fmt.Errorf("%w: stock for size %s must not be negative", domain.ErrInvalidInput, size)
		}
	}
	if !p.Sized() {
		p.Sizes = nil
	}
	p.Normalize()
	return nil
}

// Reviews is a product's review list with its average rating.
type Reviews struct {
	Items   []domain.Review `json:"items"`
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

func (s *Service) ListReviews(ctx context.Context, productID string) (Reviews, error) {
	items, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return Reviews{}, err
	}
	return Reviews{Items: items, Average: averageRating(items), Count: len(items)}, nil
}

// averageRating rounds to one decimal place.
func averageRating(items []domain.Review) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	sum := 0
	for _, r := range items {
		sum += r.Rating
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(items)))).Round(1)
}

type ReviewInput struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// AddReview stores a review by the signed-in shopper and refreshes the
// product's average rating.
func (s *Service) AddReview(ctx context.Context, who domain.Identity, productID string, in ReviewInput) (*domain.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidInput)
	}
	text := strings.TrimSpace(in.Text)
	if len([]rune(text)) < minReviewLength {
		return nil, fmt.Errorf("%w: review must be at least %d characters", domain.ErrInvalidInput, minReviewLength)
	}
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	created, err := s.reviews.Create(ctx, domain.Review{
		ProductID: productID,
		UserID:    who.UID,
		UserName:  s.reviewerName(ctx, who),
		UserEmail: who.Email,
		Rating:    in.Rating,
		Text:      text,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if items, err := s.reviews.ListByProduct(ctx, productID); err == nil {
		product.Rating = averageRating(items)
		if _, err := s.repo.Upsert(ctx, *product); err != nil {
			s.logger.Warn("update product rating", zap.String("product_id", productID), zap.Error(err))
		}
	}
	return created, nil
}

func (s *Service) reviewerName(ctx context.Context, who domain.Identity) string {
	if s.profiles != nil {
		rec, err := s.profiles.Get(ctx, who.UID)
		switch {
		case err == nil && strings.TrimSpace(rec.Username) != "":
			return strings.TrimSpace(rec.Username)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("load reviewer profile", zap.String("uid", who.UID), zap.Error(err))
		}
	}
	if who.DisplayName != "" {
		return who.DisplayName
	}
	local, _, _ := strings.Cut(who.Email, "@")
	return local
}
