package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/domain"
)

type productStore interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

func demoCatalog() []domain.Product {
	return []domain.Product{
		{
			ID:          "demo-phone",
			Title:       "Nexus X1 Smartphone",
			Price:       decimal.NewFromInt(45999),
			Category:    "Electronics",
			SubCategory: "Smartphones",
			Description: "6.5 inch display, 128GB storage and an all-day battery.",
			Stock:       15,
		},
		{
			ID:          "demo-laptop",
			Title:       "Nexus Book 14",
			Price:       decimal.NewFromInt(89500),
			Category:    "Electronics",
			SubCategory: "Laptops",
			Description: "Slim 14 inch laptop for work and study.",
			Stock:       6,
		},
		{
			ID:          "demo-headset",
			Title:       "Studio Wireless Headset",
			Price:       decimal.NewFromInt(3200),
			Category:    "Electronics",
			SubCategory: "Headsets",
			Description: "Noise cancelling over-ear headset.",
			Stock:       25,
		},
		{
			ID:          "demo-panjabi",
			Title:       "Cotton Panjabi",
			Price:       decimal.NewFromInt(2450),
			Category:    "Fashion",
			SubCategory: "Men's Clothing",
			Description: "Handloom cotton panjabi for festive days.",
			Sizes:       map[string]int{"S": 4, "M": 6, "L": 5, "XL": 0},
		},
		{
			ID:          "demo-sneakers",
			Title:       "Runner Sneakers",
			Price:       decimal.NewFromInt(4100),
			Category:    "Fashion",
			SubCategory: "Shoes",
			Description: "Lightweight everyday sneakers.",
			Sizes:       map[string]int{"S": 2, "M": 3, "L": 3, "XL": 1},
		},
		{
			ID:          "demo-lamp",
			Title:       "Brass Desk Lamp",
			Price:       decimal.NewFromInt(1800),
			Category:    "Home",
			SubCategory: "Lighting",
			Description: "Warm light desk lamp with a brass finish.",
			Stock:       9,
		},
	}
}

// Apply inserts the demo catalog for manual testing. Products that already
// exist are left untouched, so it is safe to run repeatedly.
func Apply(ctx context.Context, products productStore) (int, error) {
	created := 0
	for _, p := range demoCatalog() {
		_, err := products.GetByID(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("lookup product %s: %w", p.ID, err)
		}
		if _, err := products.Upsert(ctx, p); err != nil {
			return created, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		created++
	}
	return created, nil
}
