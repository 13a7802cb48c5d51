package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"nexus-storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,title,price,category,subCategory,image,description,stock,sizes
p-phone,Nexus Phone,45999.50,Electronics,Smartphones,https://example.com/phone.jpg,Flagship phone,12,
,Linen Shirt,1850,Fashion,Men's Clothing,,Breathable linen,,S:5|m:3|XL:0
,,,,,,,,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}

	phone := repo.items[0]
	if phone.ID != "p-phone" || phone.Stock != 12 || !phone.Price.Equal(decimal.RequireFromString("45999.5")) {
		t.Fatalf("unexpected product data: %+v", phone)
	}
	if phone.Sizes != nil {
		t.Fatalf("expected no sizes for phone, got %v", phone.Sizes)
	}

	shirt := repo.items[1]
	if shirt.ID != "" {
		t.Fatalf("expected empty id for new product, got %s", shirt.ID)
	}
	if shirt.Sizes["S"] != 5 || shirt.Sizes["M"] != 3 || shirt.Sizes["XL"] != 0 {
		t.Fatalf("unexpected sizes: %v", shirt.Sizes)
	}
}

func TestCSVImporter_RejectsInvalidRows(t *testing.T) {
	header := "id,title,price,category,subCategory,image,description,stock,sizes\n"
	cases := map[string]string{
		"negative price":   ",Lamp,-1,Home,Lighting,,,,",
		"unknown category": ",Lamp,10,Garden,,,,,",
		"wrong sub":        ",Lamp,10,Home,Laptops,,,,",
		"bad stock":        ",Lamp,10,Home,Lighting,,,lots,",
		"bad size":         ",Tee,10,Fashion,Men's Clothing,,,,XXL:2",
		"missing title":    ",,10,Home,Lighting,,,,",
	}
	for name, row := range cases {
		repo := &stubProductRepo{}
		count, err := NewCSVImporter(strings.NewReader(header+row), repo).Run(context.Background())
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if count != 0 || len(repo.items) != 0 {
			t.Fatalf("%s: expected nothing imported, got %d", name, count)
		}
	}
}

func TestCSVImporter_RequiresColumns(t *testing.T) {
	_, err := NewCSVImporter(strings.NewReader("id,name\n1,x\n"), &stubProductRepo{}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "title") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}
