package core

import "strings"

// CategoryRegistry is the set of category names a Budget may be scoped to.
// Membership is exact and case-sensitive.
type CategoryRegistry struct {
	names []string
	index map[string]struct{}
}

var defaultCategoryNames = []string{
	"Food and Dining",
	"Transportation",
	"Housing",
	"Utilities",
	"Entertainment",
	"Shopping",
	"Health and Wellness",
	"Personal Care",
	"Education",
	"Travel",
	"Gifts and Donations",
	"Business",
	"Investments",
	"Taxes",
	"Insurance",
	"Debt Payments",
	"Miscellaneous",
}

var defaultRegistry = NewCategoryRegistry(defaultCategoryNames...)

// DefaultCategories returns the stock category registry.
func DefaultCategories() *CategoryRegistry {
	return defaultRegistry
}

// NewCategoryRegistry builds a registry, dropping blanks and duplicates
// while preserving input order.
func NewCategoryRegistry(names ...string) *CategoryRegistry {
	r := &CategoryRegistry{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := r.index[n]; ok {
			continue
		}
		r.index[n] = struct{}{}
		r.names = append(r.names, n)
	}
	return r
}

func (r *CategoryRegistry) Contains(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[name]
	return ok
}

// Names returns a copy of the registered names.
func (r *CategoryRegistry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

func (r *CategoryRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}
