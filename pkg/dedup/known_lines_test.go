package dedup

import "testing"

func TestInsertFirstOccurrence(t *testing.T) {
	k := New()
	if !k.Insert("a") {
		t.Fatal("expected first insert of a new token to return true")
	}
	if k.Insert("a") {
		t.Fatal("expected second insert of the same token to return false")
	}
	if k.Len() != 1 {
		t.Fatalf("expected len 1, got %d", k.Len())
	}
}

func TestInsertDistinctTokens(t *testing.T) {
	k := New()
	for _, tok := range []string{"a", "b", "c", "a", "b"} {
		k.Insert(tok)
	}
	if k.Len() != 3 {
		t.Fatalf("expected len 3, got %d", k.Len())
	}
}

func TestNeverShrinks(t *testing.T) {
	k := New()
	k.Insert("a")
	k.Insert("b")
	before := k.Len()
	k.Insert("a")
	if k.Len() != before {
		t.Fatalf("len changed after re-inserting a known token: %d -> %d", before, k.Len())
	}
}
