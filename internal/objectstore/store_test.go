package objectstore

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetAllInsertionOrder(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1", "total": 1200.0})
	s.Put("order", map[string]any{"id": "2", "total": 800.0})

	all := s.GetAll("order")
	if len(all) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(all))
	}
	if all[0]["id"] != "1" || all[1]["id"] != "2" {
		t.Fatalf("expected insertion order, got %v", all)
	}
}

func TestGetFieldAcrossMissingFieldIsNull(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1", "total": 1200.0})
	s.Put("order", map[string]any{"id": "2"})

	totals := s.GetFieldAcross("order", "total")
	if len(totals) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(totals))
	}
	if totals[0] != 1200.0 {
		t.Fatalf("expected 1200.0, got %v", totals[0])
	}
	if totals[1] != nil {
		t.Fatalf("expected nil for missing field, got %v", totals[1])
	}
}

func TestGetByIDNotFoundReturnsFalse(t *testing.T) {
	s := New()
	if _, ok := s.GetByID("order", "missing"); ok {
		t.Fatal("expected not found")
	}
}

func TestGetByIDMostRecentWins(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "x", "total": 1.0})
	s.Put("order", map[string]any{"id": "x", "total": 2.0})

	obj, ok := s.GetByID("order", "x")
	if !ok {
		t.Fatal("expected found")
	}
	if obj["total"] != 2.0 {
		t.Fatalf("expected most recent write (2.0), got %v", obj["total"])
	}
}

func TestGetByIDDoesNotLeakAcrossTypes(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "shared", "kind": "order"})
	s.Put("user", map[string]any{"id": "shared", "kind": "user"})

	obj, ok := s.GetByID("order", "shared")
	if !ok || obj["kind"] != "order" {
		t.Fatalf("expected order object, got %v, ok=%v", obj, ok)
	}

	obj, ok = s.GetByID("user", "shared")
	if !ok || obj["kind"] != "user" {
		t.Fatalf("expected user object, got %v, ok=%v", obj, ok)
	}
}

func TestGetFieldAcrossDottedPath(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1", "customer": map[string]any{"name": "ann"}})
	s.Put("order", map[string]any{"id": "2", "customer": map[string]any{}})

	names := s.GetFieldAcross("order", "customer", "name")
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(names))
	}
	if names[0] != "ann" {
		t.Fatalf("expected ann, got %v", names[0])
	}
	if names[1] != nil {
		t.Fatalf("expected nil for missing nested field, got %v", names[1])
	}
}

func TestGetFieldOfDottedPath(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1", "customer": map[string]any{"name": "ann"}})

	name, ok := s.GetFieldOf("order", "1", "customer", "name")
	if !ok || name != "ann" {
		t.Fatalf("expected (ann, true), got (%v, %v)", name, ok)
	}

	if _, ok := s.GetFieldOf("order", "1", "customer", "missing"); ok {
		t.Fatal("expected not found for missing nested field")
	}
}

func TestLookupByIDIgnoresType(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "x", "total": 1.0})

	obj, ok := s.LookupByID("x")
	if !ok || obj["total"] != 1.0 {
		t.Fatalf("expected found object, got %v, ok=%v", obj, ok)
	}

	if _, ok := s.LookupByID("missing"); ok {
		t.Fatal("expected not found")
	}
}

func TestGetFieldOfMissingIDOrField(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1", "total": 1200.0})

	if _, ok := s.GetFieldOf("order", "missing", "total"); ok {
		t.Fatal("expected not found for missing id")
	}
	if _, ok := s.GetFieldOf("order", "1", "missing_field"); ok {
		t.Fatal("expected not found for missing field")
	}
}

func TestClearEmptiesBothIndices(t *testing.T) {
	s := New()
	s.Put("order", map[string]any{"id": "1"})
	s.Clear()

	if len(s.GetAll("order")) != 0 {
		t.Fatal("expected empty after clear")
	}
	if _, ok := s.GetByID("order", "1"); ok {
		t.Fatal("expected not found after clear")
	}
}

func TestConcurrentPutGetAllNeverTorn(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put("widget", map[string]any{
				"id":     fmt.Sprintf("w%d", i),
				"fields": []any{1, 2, 3},
			})
		}(i)
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, obj := range s.GetAll("widget") {
				if _, ok := obj["id"]; !ok {
					t.Error("observed partially populated object")
				}
			}
		}()
	}

	wg.Wait()

	if len(s.GetAll("widget")) != 50 {
		t.Fatalf("expected 50 widgets, got %d", len(s.GetAll("widget")))
	}
}
