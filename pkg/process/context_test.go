package process

import "testing"

func strSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestCollectBeforeLeftoversArithmetic is scenario S1 from spec.md §8.
func TestCollectBeforeLeftoversArithmetic(t *testing.T) {
	buf := []string{"line0", "line1", "line2", "line3", "line4"}

	if got := CollectBefore(0, 0, buf, nil); len(got) != 0 {
		t.Fatalf("collect_before(0,0): expected empty, got %v", got)
	}
	if got := CollectBefore(1, 0, buf, nil); !strSlicesEqual(got, []string{"line0"}) {
		t.Fatalf("collect_before(1,0): got %v", got)
	}
	if got := CollectBefore(1, 1, buf, nil); len(got) != 0 {
		t.Fatalf("collect_before(1,1): expected empty, got %v", got)
	}
	if got := CollectBefore(4, 0, buf, nil); !strSlicesEqual(got, []string{"line1", "line2", "line3"}) {
		t.Fatalf("collect_before(4,0): got %v", got)
	}
}

// TestCollectBeforeWithLeftovers continues S1: after a reset, left_overs
// supplies the top-up when the before window starts at buffer index 0.
func TestCollectBeforeWithLeftovers(t *testing.T) {
	leftOvers := []string{"line3", "line4"}
	buf := []string{"line6"}

	got := CollectBefore(1, 0, buf, leftOvers)
	want := []string{"line3", "line4", "line6"}
	if !strSlicesEqual(got, want) {
		t.Fatalf("collect_before with leftovers: got %v want %v", got, want)
	}
}

func TestCollectBeforeNeverExceedsCtxDistance(t *testing.T) {
	buf := make([]string, 50)
	for i := range buf {
		buf[i] = "l"
	}
	got := CollectBefore(40, 0, buf, nil)
	if len(got) != CtxDistance {
		t.Fatalf("expected exactly CtxDistance elements, got %d", len(got))
	}
}
