package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter loads catalog rows and upserts them as products. Rows with an
// id overwrite that product; rows without one create a new product.
//
// Expected header: id,title,price,category,subCategory,image,description,stock,sizes
// where sizes looks like "S:5|M:5|L:0|XL:2".
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

// Run parses every row and upserts it. It stops at the first invalid row and
// reports how many products were written before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"title", "price", "category"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.Title, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		ID:          pick(record, index, "id"),
		Title:       pick(record, index, "title"),
		Category:    pick(record, index, "category"),
		SubCategory: pick(record, index, "subCategory"),
		Image:       pick(record, index, "image"),
		Description: pick(record, index, "description"),
	}
	if p.Title == "" {
		return p, errors.New("title is required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil || price.IsNegative() {
		return p, fmt.Errorf("invalid price for %q", p.Title)
	}
	p.Price = price

	if _, ok := domain.FindCategory(p.Category); !ok {
		return p, fmt.Errorf("unknown category %q", p.Category)
	}
	if p.SubCategory != "" && !domain.ValidSubCategory(p.Category, p.SubCategory) {
		return p, fmt.Errorf("sub-category %q does not belong to %q", p.SubCategory, p.Category)
	}

	if raw := pick(record, index, "stock"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid stock for %q", p.Title)
		}
		p.Stock = n
	}

	sizes, err := parseSizes(pick(record, index, "sizes"))
	if err != nil {
		return p, fmt.Errorf("sizes for %q: %w", p.Title, err)
	}
	p.Sizes = sizes
	return p, nil
}

// parseSizes reads "S:5|M:3". Unknown size labels are rejected.
func parseSizes(raw string) (map[string]int, error) {
	if raw == "" {
		return nil, nil
	}
	out := map[string]int{}
	for _, part := range strings.Split(raw, "|") {
		label, count, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		if !standardSize(label) {
			return nil, fmt.Errorf("unknown size %q", label)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count for size %s", label)
		}
		out[label] = n
	}
	return out, nil
}

func standardSize(label string) bool {
	for _, s := range domain.StandardSizes {
		if s == label {
			return true
		}
	}
	return false
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
