package models

import "testing"

func TestCategoriesStartWithFeed(t *testing.T) {
	if len(Categories) == 0 {
		t.Fatal("expected a non-empty category strip")
	}
	if Categories[0].ID != CategoryFeed {
		t.Fatalf("expected the feed category first, got %q", Categories[0].ID)
	}
	seen := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		if c.Label == "" {
			t.Fatalf("category %q has no label", c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			t.Fatalf("duplicate category id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
}

func TestCategoryByID(t *testing.T) {
	if c, ok := CategoryByID("28"); !ok || c.Label != "Acción" {
		t.Fatalf("expected action category, got %+v (ok=%v)", c, ok)
	}
	if _, ok := CategoryByID("999"); ok {
		t.Fatal("expected unknown category to miss")
	}
	if c, ok := CategoryByID(CategoryFeed); !ok || c.Label != "Para ti" {
		t.Fatalf("expected feed category, got %+v (ok=%v)", c, ok)
	}
}
