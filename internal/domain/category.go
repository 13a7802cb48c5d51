package domain

// Category is one top level department and its ordered sub-categories.
type Category struct {
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories"`
}

// CategoryTree is the fixed storefront taxonomy. Order matters: the first
// entry doubles as the visual search fallback.
var CategoryTree = []Category{
	{Name: "Electronics", SubCategories: []string{"Smartphones", "Laptops", "Headsets", "Keyboards", "Mice", "Cameras", "Monitors"}},
	{Name: "Fashion", SubCategories: []string{"Men's Clothing", "Women's Clothing", "Shoes", "Watches", "Accessories"}},
	{Name: "Home", SubCategories: []string{"Furniture", "Decor", "Kitchen", "Lighting"}},
}

// StandardSizes are the sizes tracked for apparel.
var StandardSizes = []string{"S", "M", "L", "XL"}

var sizedCategories = map[string]bool{
	"Fashion":          true,
	"Shoes":            true,
	"Men's Clothing":   true,
	"Women's Clothing": true,
}

// HasSizes reports whether products in the (sub-)category are sold by size.
func HasSizes(category string) bool {
	return sizedCategories[category]
}

// FindCategory looks up a top level category by name.
func FindCategory(name string) (Category, bool) {
	for _, c := range CategoryTree {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// ValidSubCategory reports whether sub belongs to category.
func ValidSubCategory(category, sub string) bool {
	c, ok := FindCategory(category)
	if !ok {
		return false
	}
	for _, s := range c.SubCategories {
		if s == sub {
			return true
		}
	}
	return false
}
