package models

import "testing"

func TestSearchQuery_Validate(t *testing.T) {
	q := &SearchQuery{}
	if err := q.Validate(); err == nil {
		t.Error("expected error for empty query")
	}

	q = &SearchQuery{Query: "machine learning"}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 20 {
		t.Errorf("default limit = %d, want 20", q.Limit)
	}

	q = &SearchQuery{Query: "x", Limit: 500}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 100 {
		t.Errorf("capped limit = %d, want 100", q.Limit)
	}
}
