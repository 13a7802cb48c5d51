// Package assistant answers shopper and admin questions with the language
// model. Every operation degrades to a fixed answer when the model fails.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"nexus-storefront/internal/ai"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
	"nexus-storefront/internal/redisx"
)

const (
	ChatFallback        = "I am having trouble reading the database. Please try again."
	DescriptionFallback = "Manual description required."

	recentOrdersForAnalyst = 10
)

type completer interface {
	Complete(ctx context.Context, prompt string, image *ai.Image) (string, error)
}

type productLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

type orderLister interface {
	ListAll(ctx context.Context) ([]domain.Order, error)
}

type textCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type fallbackRecorder interface {
	AIFallback(operation string)
}

// Answer is model output. Fallback is set when the fixed text was used.
type Answer struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Match is the category guessed for an uploaded image.
type Match struct {
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Fallback    bool   `json:"fallback"`
}

type Deps struct {
	Model    completer
	Products productLister
	Orders   orderLister
	Cache    textCache
	Metrics  fallbackRecorder
	Logger   *zap.Logger
}

type Service struct {
	model    completer
	products productLister
	orders   orderLister
	cache    textCache
	metrics  fallbackRecorder
	logger   *zap.Logger
	cacheTTL time.Duration
}

func New(deps Deps) *Service {
	return &Service{
		model:    deps.Model,
		products: deps.Products,
		orders:   deps.Orders,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		logger:   logging.Or(deps.Logger),
		cacheTTL: redisx.TTLInventory,
	}
}

func (s *Service) fallback(op string, err error) {
	s.logger.Warn("assistant fallback", zap.String("operation", op), zap.Error(err))
	if s.metrics != nil {
		s.metrics.AIFallback(op)
	}
}

func categoryOptions() string {
	var b strings.Builder
	for _, c := range domain.CategoryTree {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, strings.Join(c.SubCategories, ", "))
	}
	return b.String()
}

func defaultMatch() Match {
	first := domain.CategoryTree[0]
	return Match{Category: first.Name, SubCategory: first.SubCategories[0], Fallback: true}
}

// VisualSearch classifies a product photo into the category tree.
func (s *Service) VisualSearch(ctx context.Context, image ai.Image) Match {
	prompt := "Analyze this product image.\n" +
		"Identify the Main Category and the specific Sub-Category.\n\n" +
		"Valid Options:\n" + categoryOptions() + "\n" +
		"Return ONLY a raw JSON object. Do not write markdown or explanations.\n" +
		`Format: {"category": "MainCategory", "subCategory": "SubCategory"}`

	text, err := s.model.Complete(ctx, prompt, &image)
	if err != nil {
		s.fallback("visual_search", err)
		return defaultMatch()
	}
	m, err := parseMatch(text)
	if err != nil {
		s.fallback("visual_search", err)
		return defaultMatch()
	}
	return m
}

func parseMatch(text string) (Match, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	var m Match
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &m); err != nil {
		return Match{}, fmt.Errorf("decode match: %w", err)
	}
	cat, ok := domain.FindCategory(m.Category)
	if !ok {
		return Match{}, fmt.Errorf("unknown category %q", m.Category)
	}
	if !domain.ValidSubCategory(cat.Name, m.SubCategory) {
		m.SubCategory = cat.SubCategories[0]
	}
	m.Fallback = false
	return m, nil
}

// Chat answers a shopper question from the current inventory.
func (s *Service) Chat(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	inventory, err := s.inventory(ctx)
	if err != nil {
		s.fallback("chat", err)
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	prompt := "You are the AI Assistant for 'NexusStore'.\n\n" +
		"CURRENT INVENTORY DATA:\n" + inventory + "\n\n" +
		fmt.Sprintf("USER QUESTION: %q\n\n", question) +
		"INSTRUCTIONS:\n" +
		"1. Answer based ONLY on the inventory data above.\n" +
		"2. If asking for stock of a specific size (e.g. Size M), check the 'sizes' field in the data.\n" +
		"3. If the product is NOT in the list, say \"I am sorry, we don't have that in stock.\"\n" +
		"4. Be concise and friendly."
	text, err := s.model.Complete(ctx, prompt, nil)
	if err != nil {
		s.fallback("chat", err)
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	return Answer{Text: text}, nil
}

// inventory renders the catalog for prompts, reading through the cache
// when one is configured.
func (s *Service) inventory(ctx context.Context) (string, error) {
	if s.cache != nil {
		if text, ok, err := s.cache.Get(ctx, redisx.KeyInventorySummary); err == nil && ok {
			return text, nil
		} else if err != nil {
			s.logger.Warn("inventory cache read", zap.Error(err))
		}
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return "", err
	}
	text := inventoryText(products)
	if s.cache != nil {
		if err := s.cache.Set(ctx, redisx.KeyInventorySummary, text, s.cacheTTL); err != nil {
			s.logger.Warn("inventory cache write", zap.Error(err))
		}
	}
	return text, nil
}

func inventoryText(products []domain.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		line := fmt.Sprintf("- %s (%s): Price ৳%s, Total Stock: %d", p.Title, p.Category, p.Price.String(), p.Stock)
		if p.Sized() && len(p.Sizes) > 0 {
			sizes := make([]string, 0, len(domain.StandardSizes))
			for _, size := range domain.StandardSizes {
				sizes = append(sizes, fmt.Sprintf("%s: %d", size, p.Sizes[size]))
			}
			line += ", Sizes: " + strings.Join(sizes, ", ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Describe drafts a two sentence product description.
func (s *Service) Describe(ctx context.Context, title, subCategory string) (Answer, error) {
	name := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(subCategory))
	if strings.TrimSpace(title) == "" {
		return Answer{}, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	prompt := fmt.Sprintf("Write a sophisticated 2-sentence marketing description for: %s. Focus on material and features.", name)
	text, err := s.model.Complete(ctx, prompt, nil)
	if err != nil {
		s.fallback("describe", err)
		return Answer{Text: DescriptionFallback, Fallback: true}, nil
	}
	return Answer{Text: strings.TrimSpace(text)}, nil
}

// Analyst answers an admin question over the inventory and recent orders.
func (s *Service) Analyst(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	products, err := s.products.List(ctx)
	if err != nil {
		s.fallback("analyst", err)
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		s.fallback("analyst", err)
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	if len(orders) > recentOrdersForAnalyst {
		orders = orders[:recentOrdersForAnalyst]
	}
	recent := make([]string, 0, len(orders))
	for _, o := range orders {
		short := o.ID
		if len(short) > 4 {
			short = short[:4]
		}
		recent = append(recent, fmt.Sprintf("Order %s: ৳%s (%s)", short, o.TotalAmount.String(), o.Status))
	}

	prompt := "You are the AI Business Manager for NexusStore.\n" +
		"CURRENT INVENTORY DATA:\n" + inventoryText(products) + "\n" +
		"RECENT SALES DATA:\n" + strings.Join(recent, "\n") + "\n" +
		fmt.Sprintf("USER QUESTION: %q\n", question) +
		"INSTRUCTIONS:\n" +
		"- Answer specifically based on the data provided above.\n" +
		"- If asked about low stock, check the 'Total Stock' and 'Sizes'.\n" +
		"- If asked about revenue, summarize the sales data.\n" +
		"- Be professional but concise."
	text, err := s.model.Complete(ctx, prompt, nil)
	if err != nil {
		s.fallback("analyst", err)
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	return Answer{Text: text}, nil
}
