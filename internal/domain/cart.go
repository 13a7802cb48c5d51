package domain

import "github.com/shopspring/decimal"

// CartLine is one purchasable entry in a cart. Title, price and image are
// copied from the product when the line is first added and never refreshed.
type CartLine struct {
	LineID    string          `json:"id"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	Size      string          `json:"selectedSize,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity for the line.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums price x quantity over lines. It is recomputed on every call.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// LineID derives the merge key for a product and optional size.
func LineID(productID, size string) string {
	if size == "" {
		return productID
	}
	return productID + "-" + size
}

// CloneLines returns a copy that callers may mutate freely.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
