package memstore

import (
	"context"
	"fmt"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
)

type seedBusiness struct {
	business catalog.Business
	items    []catalog.Item
}

var demoCatalog = []seedBusiness{
	{
		business: catalog.Business{
			Name: "Luigi's Trattoria", Category: "restaurant",
			Description: "Family run Italian trattoria with wood-fired pizza and fresh pasta.",
			Address:     "12 Harbor Street", Phone: "555-0101", Hours: "Tue-Sun 12:00-22:00",
			Tags: []string{"italian", "pizza", "pasta", "vegetarian options"}, Active: true,
		},
		items: []catalog.Item{
			{Name: "Margherita Pizza", Description: "Tomato, mozzarella and basil", Category: "pizza", Price: 11.5, Available: true},
			{Name: "Tagliatelle Bolognese", Description: "Slow cooked beef ragu", Category: "pasta", Price: 14, Available: true},
			{Name: "Tiramisu", Description: "Classic coffee dessert", Category: "dessert", Price: 6.5, Available: true},
		},
	},
	{
		business: catalog.Business{
			Name: "Sakura Sushi Bar", Category: "restaurant",
			Description: "Sushi counter and ramen with an omakase menu on weekends.",
			Address:     "48 Cherry Lane", Phone: "555-0102", Hours: "Mon-Sat 17:00-23:00",
			Tags: []string{"japanese", "sushi", "ramen"}, Active: true,
		},
		items: []catalog.Item{
			{Name: "Salmon Nigiri", Description: "Two pieces of fresh salmon", Category: "sushi", Price: 5, Available: true},
			{Name: "Tonkotsu Ramen", Description: "Pork broth, noodles, soft egg", Category: "ramen", Price: 13, Available: true},
		},
	},
	{
		business: catalog.Business{
			Name: "Glow Hair Studio", Category: "salon",
			Description: "Cuts, colour and styling by appointment.",
			Address:     "3 Market Square", Phone: "555-0201", Hours: "Tue-Sat 09:00-18:00",
			Tags: []string{"haircut", "colour", "styling"}, Active: true,
		},
		items: []catalog.Item{
			{Name: "Women's Haircut", Description: "Wash, cut and blow dry", Category: "haircut", Price: 45, Available: true},
			{Name: "Men's Haircut", Description: "Cut and style", Category: "haircut", Price: 25, Available: true},
			{Name: "Full Colour", Description: "Single process colour", Category: "colour", Price: 80, Available: true},
		},
	},
	{
		business: catalog.Business{
			Name: "Serenity Spa", Category: "spa",
			Description: "Massages, facials and a sauna garden.",
			Address:     "90 Lake Road", Phone: "555-0202", Hours: "Daily 10:00-20:00",
			Tags: []string{"massage", "facial", "relaxation"}, Active: true,
		},
		items: []catalog.Item{
			{Name: "Deep Tissue Massage", Description: "60 minute massage", Category: "massage", Price: 90, Available: true},
			{Name: "Hydrating Facial", Description: "45 minute facial", Category: "facial", Price: 70, Available: true},
		},
	},
	{
		business: catalog.Business{
			Name: "Green Basket Grocery", Category: "grocery",
			Description: "Organic produce and pantry staples with same-day delivery.",
			Address:     "7 Orchard Avenue", Phone: "555-0301", Hours: "Daily 08:00-21:00",
			Tags: []string{"organic", "produce", "delivery"}, Active: true,
		},
		items: []catalog.Item{
			{Name: "Organic Eggs", Description: "Dozen free range eggs", Category: "dairy", Price: 5.5, Available: true},
			{Name: "Sourdough Loaf", Description: "Baked this morning", Category: "bakery", Price: 4.75, Available: true},
			{Name: "Seasonal Vegetable Box", Description: "Mixed local vegetables", Category: "produce", Price: 24, Available: true},
		},
	},
	{
		business: catalog.Business{
			Name: "Old Town Books", Category: "retail",
			Description: "Closed for renovation.", Active: false,
		},
	},
}

// Seed loads the demo catalog and returns the number of businesses added.
func (s *Store) Seed() int {
	for _, sb := range demoCatalog {
		id := s.PutBusiness(sb.business)
		for _, it := range sb.items {
			it.BusinessID = id
			s.PutItem(it)
		}
	}
	return len(demoCatalog)
}

// CatalogWriter persists catalog rows and returns their ids.
type CatalogWriter interface {
	InsertBusiness(ctx context.Context, b *catalog.Business) (string, error)
	InsertItem(ctx context.Context, it *catalog.Item) (string, error)
}

// SeedInto writes the demo catalog through w, for stores other than this one.
func SeedInto(ctx context.Context, w CatalogWriter) (int, error) {
	for _, sb := range demoCatalog {
		b := sb.business
		id, err := w.InsertBusiness(ctx, &b)
		if err != nil {
			return 0, fmt.Errorf("seed business %s: %w", b.Name, err)
		}
		for _, it := range sb.items {
			it.BusinessID = id
			if _, err := w.InsertItem(ctx, &it); err != nil {
				return 0, fmt.Errorf("seed item %s: %w", it.Name, err)
			}
		}
	}
	return len(demoCatalog), nil
}
