package index

import "testing"

func TestDistanceToKnownLineIsZero(t *testing.T) {
	b := NewFeaturesMatrixBuilder()
	b.Add("n: regular log line")
	b.Add("in-between line")
	r := b.Build()

	dists := r.Distance([]string{"n: regular log line", "in-between line"})
	for i, d := range dists {
		if d > 0.001 {
			t.Fatalf("expected known line %d to have ~0 distance, got %f", i, d)
		}
	}
}

func TestDistanceToNovelLineIsMax(t *testing.T) {
	b := NewFeaturesMatrixBuilder()
	b.Add("n: regular log line")
	r := b.Build()

	dists := r.Distance([]string{"traceback oops totally unrelated words"})
	if dists[0] < 0.99 {
		t.Fatalf("expected novel line to have ~1.0 distance, got %f", dists[0])
	}
}

func TestDistanceOrderAndLengthPreserved(t *testing.T) {
	b := NewFeaturesMatrixBuilder()
	b.Add("foo bar")
	r := b.Build()

	dists := r.Distance([]string{"foo bar", "baz qux", "foo bar"})
	if len(dists) != 3 {
		t.Fatalf("expected 3 distances, got %d", len(dists))
	}
	if dists[0] != dists[2] {
		t.Fatalf("expected identical queries to produce identical distances")
	}
}

func TestEmptyIndexIsMaximallyDissimilar(t *testing.T) {
	b := NewFeaturesMatrixBuilder()
	r := b.Build()
	dists := r.Distance([]string{"anything"})
	if dists[0] != 1.0 {
		t.Fatalf("expected distance 1.0 against an empty index, got %f", dists[0])
	}
}
