package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       int             `json:"stock"`
	Sizes       map[string]int  `json:"sizes,omitempty"`
	Rating      decimal.Decimal `json:"rating"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Sized reports whether the product is sold per size.
func (p Product) Sized() bool {
	return HasSizes(p.Category) || HasSizes(p.SubCategory)
}

// SizeStock returns the stock held for size, zero when unknown.
func (p Product) SizeStock(size string) int {
	if p.Sizes == nil {
		return 0
	}
	return p.Sizes[size]
}

// Normalize fills defaults for records written with missing fields.
func (p *Product) Normalize() {
	if p.Category == "" {
		p.Category = CategoryTree[0].Name
	}
	if p.SubCategory == "" {
		if c, ok := FindCategory(p.Category); ok && len(c.SubCategories) > 0 {
			p.SubCategory = c.SubCategories[0]
		}
	}
	if !p.Sized() {
		return
	}
	if p.Sizes == nil {
		p.Sizes = make(map[string]int, len(StandardSizes))
	}
	total := 0
	for _, s := range StandardSizes {
		if _, ok := p.Sizes[s]; !ok {
			p.Sizes[s] = 0
		}
	}
	for _, n := range p.Sizes {
		total += n
	}
	p.Stock = total
}
