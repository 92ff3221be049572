// Package catalog models the businesses and items the assistant can act on.
package catalog

import (
	"slices"
	"strings"
	"time"
)

// Kind groups business categories by how a customer engages with them.
type Kind string

const (
	KindDining  Kind = "dining"
	KindService Kind = "service"
	KindRetail  Kind = "retail"
)

var categoryKinds = map[string]Kind{
	"restaurant": KindDining,
	"cafe":       KindDining,
	"bar":        KindDining,
	"bakery":     KindDining,
	"food_truck": KindDining,
	"salon":      KindService,
	"spa":        KindService,
	"clinic":     KindService,
	"barber":     KindService,
	"fitness":    KindService,
	"dental":     KindService,
	"retail":     KindRetail,
	"grocery":    KindRetail,
	"pharmacy":   KindRetail,
	"florist":    KindRetail,
}

// KindOf returns the engagement kind of a category. Unknown categories are treated as retail.
func KindOf(category string) Kind {
	if k, ok := categoryKinds[normalizeCategory(category)]; ok {
		return k
	}
	return KindRetail
}

// IsServiceCategory reports whether bookings for the category are per person
// appointments where a party size is not meaningful.
func IsServiceCategory(category string) bool {
	return KindOf(category) == KindService
}

func normalizeCategory(c string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
}

// Business is a merchant listed in the catalog.
type Business struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Hours       string            `json:"hours,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Active      bool              `json:"active"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// Profile returns the searchable text describing the business.
func (b *Business) Profile() string {
	parts := []string{b.Name, b.Category, b.Description}
	if b.Address != "" {
		parts = append(parts, b.Address)
	}
	if b.Hours != "" {
		parts = append(parts, "Hours: "+b.Hours)
	}
	parts = append(parts, b.Tags...)
	return strings.Join(parts, ". ")
}

// Item is a product or service offered by a business.
type Item struct {
	ID          string  `json:"id"`
	BusinessID  string  `json:"business_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
}

// Text returns the searchable text describing the item.
func (i *Item) Text() string {
	if i.Description == "" {
		return i.Name
	}
	return i.Name + ": " + i.Description
}

// Snapshot is a point-in-time view of the active catalog.
type Snapshot struct {
	Businesses []Business `json:"businesses"`
	Items      []Item     `json:"items"`
	TakenAt    time.Time  `json:"taken_at"`
}

// Categories returns the distinct business categories, sorted.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range s.Businesses {
		c := normalizeCategory(s.Businesses[i].Category)
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// BusinessNames returns the names of all businesses in the snapshot.
func (s *Snapshot) BusinessNames() []string {
	out := make([]string, 0, len(s.Businesses))
	for i := range s.Businesses {
		out = append(out, s.Businesses[i].Name)
	}
	return out
}

// Business returns the business with the given id.
func (s *Snapshot) Business(id string) (Business, bool) {
	for i := range s.Businesses {
		if s.Businesses[i].ID == id {
			return s.Businesses[i], true
		}
	}
	return Business{}, false
}

// ItemsFor returns the available items of a business.
func (s *Snapshot) ItemsFor(businessID string) []Item {
	var out []Item
	for i := range s.Items {
		if s.Items[i].BusinessID == businessID && s.Items[i].Available {
			out = append(out, s.Items[i])
		}
	}
	return out
}

// InCategory returns the businesses whose category matches.
func (s *Snapshot) InCategory(category string) []Business {
	want := normalizeCategory(category)
	var out []Business
	for i := range s.Businesses {
		if normalizeCategory(s.Businesses[i].Category) == want {
			out = append(out, s.Businesses[i])
		}
	}
	return out
}
