// Package catalog provides the menu of orderable items.
package catalog

import "log/slog"

// Item is a single orderable menu entry.
type Item struct {
	Name  string
	Price float64
}

// Category is a named group of menu items.
type Category struct {
	Name  string
	Items []Item
}

// Provider supplies the menu shown to users. Implementations must be safe
// for concurrent reads.
type Provider interface {
	// Categories returns all menu categories in presentation order.
	Categories() []Category
	// Category returns the named category, or false when unknown.
	Category(name string) (Category, bool)
	// FindItem looks an item up inside a category by name.
	FindItem(category, item string) (Item, bool)
}

// StaticProvider serves a fixed menu defined at construction.
type StaticProvider struct {
	categories []Category
	byName     map[string]Category
}

// NewStaticProvider builds a provider over the given categories.
func NewStaticProvider(categories []Category) *StaticProvider {
	byName := make(map[string]Category, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}
	slog.Debug("StaticProvider created", "categories", len(categories))
	return &StaticProvider{categories: categories, byName: byName}
}

// NewDefaultProvider builds a provider with the stock restaurant menu.
func NewDefaultProvider() *StaticProvider {
	return NewStaticProvider([]Category{
		{
			Name: "Rice Dishes",
			Items: []Item{
				{Name: "Jollof Rice", Price: 1500},
				{Name: "Fried Rice", Price: 1500},
				{Name: "Coconut Rice", Price: 1800},
			},
		},
		{
			Name: "Swallow & Soup",
			Items: []Item{
				{Name: "Pounded Yam & Egusi", Price: 2500},
				{Name: "Eba & Okra", Price: 2000},
				{Name: "Amala & Ewedu", Price: 2200},
			},
		},
		{
			Name: "Proteins",
			Items: []Item{
				{Name: "Grilled Chicken", Price: 2500},
				{Name: "Fried Fish", Price: 2000},
				{Name: "Beef Suya", Price: 1800},
			},
		},
		{
			Name: "Drinks",
			Items: []Item{
				{Name: "Chapman", Price: 1000},
				{Name: "Zobo", Price: 500},
				{Name: "Bottled Water", Price: 300},
			},
		},
	})
}

func (p *StaticProvider) Categories() []Category {
	return p.categories
}

func (p *StaticProvider) Category(name string) (Category, bool) {
	c, ok := p.byName[name]
	return c, ok
}

func (p *StaticProvider) FindItem(category, item string) (Item, bool) {
	c, ok := p.byName[category]
	if !ok {
		return Item{}, false
	}
	for _, i := range c.Items {
		if i.Name == item {
			return i, true
		}
	}
	return Item{}, false
}
