package catalog

import "testing"

func TestDefaultProvider(t *testing.T) {
	p := NewDefaultProvider()

	categories := p.Categories()
	if len(categories) == 0 {
		t.Fatal("default provider has no categories")
	}

	c, ok := p.Category("Rice Dishes")
	if !ok {
		t.Fatal("Category lookup failed for Rice Dishes")
	}
	if len(c.Items) == 0 {
		t.Error("Rice Dishes category has no items")
	}

	if _, ok := p.Category("Desserts"); ok {
		t.Error("Category lookup succeeded for unknown category")
	}

	item, ok := p.FindItem("Rice Dishes", "Jollof Rice")
	if !ok {
		t.Fatal("FindItem failed for Jollof Rice")
	}
	if item.Price <= 0 {
		t.Errorf("Jollof Rice price = %v, want positive", item.Price)
	}

	if _, ok := p.FindItem("Rice Dishes", "Pizza"); ok {
		t.Error("FindItem succeeded for item not in category")
	}
	if _, ok := p.FindItem("Desserts", "Cake"); ok {
		t.Error("FindItem succeeded for unknown category")
	}
}
