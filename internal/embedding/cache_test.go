package embedding

import "testing"

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)

	if _, ok := c.Get("a"); ok {
		t.Error("unexpected hit on empty cache")
	}

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}

	// "a" was just used, so inserting "c" evicts "b".
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := NewCache(1)
	c.Set("k", []float32{1})
	c.Set("k", []float32{2})
	if v, _ := c.Get("k"); v[0] != 2 {
		t.Errorf("overwrite: got %v", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
