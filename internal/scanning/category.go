package scanning

import (
	"fmt"
	"strings"
)

// Category is the product domain selected before scanning
type Category string

const (
	Cosmetics  Category = "cosmetics"
	Food       Category = "food"
	Healthcare Category = "healthcare"
	Processed  Category = "processed"
)

var categoryLabels = map[Category]string{
	Cosmetics:  "Cosmetics & Personal Care",
	Food:       "Food & Beverages",
	Healthcare: "Healthcare & Medicine",
	Processed:  "Processed & Packaged Goods",
}

// Categories returns every category in display order
func Categories() []Category {
	return []Category{Cosmetics, Food, Healthcare, Processed}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the display label for the category
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// ParseCategory parses a category identifier, ignoring case and surrounding space
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
