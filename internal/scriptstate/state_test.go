package scriptstate

import "testing"

func TestGetUnsetKeyReturnsNil(t *testing.T) {
	s := New()
	if v := s.Get("missing"); v != nil {
		t.Fatalf("expected nil, got %v", v)
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := New()
	s.Set("n", 3.0)

	if v := s.Get("n"); v != 3.0 {
		t.Fatalf("expected 3.0, got %v", v)
	}
}

func TestClearResetsAllKeys(t *testing.T) {
	s := New()
	s.Set("a", 1.0)
	s.Set("b", "x")
	s.Clear()

	if s.Get("a") != nil || s.Get("b") != nil {
		t.Fatal("expected all keys cleared")
	}
}
