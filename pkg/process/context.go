package process

// bufferedLine is one raw line read from the target stream together
// with the coord assigned to it when it was read (spec.md §3).
type bufferedLine struct {
	raw        string
	lineNumber int
	coord      int
}

// CollectBefore builds the before-context window for an anomaly found
// at buffer[bufferPos]. lastContextPos is the first buffer index not
// yet claimed as some earlier anomaly's after-context; leftOvers are
// the trailing raw lines carried over from the previous chunk. The
// result is chronological, length <= CtxDistance, and never repeats a
// line already used as after-context (spec.md §4.3).
func CollectBefore(bufferPos, lastContextPos int, buffer []string, leftOvers []string) []string {
	minPos := 0
	if bufferPos > CtxDistance {
		minPos = bufferPos - CtxDistance
	}
	start := lastContextPos
	if minPos > start {
		start = minPos
	}
	if start > bufferPos {
		start = bufferPos
	}
	if start < 0 {
		start = 0
	}

	before := append([]string(nil), buffer[start:bufferPos]...)

	if start == 0 && len(before) < CtxDistance {
		need := CtxDistance - len(before)
		available := len(leftOvers)
		want := need
		if available < want {
			want = available
		}
		extra := leftOvers[available-want:]
		before = append(append([]string(nil), extra...), before...)
	}
	return before
}

// collectBeforeBuffered adapts CollectBefore to the ChunkProcessor's
// internal (LogLine, coord) buffer representation.
func collectBeforeBuffered(bufferPos, lastContextPos int, buffer []bufferedLine, leftOvers []string) []string {
	raw := make([]string, len(buffer))
	for i, b := range buffer {
		raw[i] = b.raw
	}
	return CollectBefore(bufferPos, lastContextPos, raw, leftOvers)
}
