package process

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-kit/kit/log/level"
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/famarks/logscope/internal/util"
	"github.com/famarks/logscope/pkg/dedup"
	"github.com/famarks/logscope/pkg/index"
	"github.com/famarks/logscope/pkg/lines"
	"github.com/famarks/logscope/pkg/tokenizer"
)

// ChunkProcessor is a single-pass, stateful iterator over a target
// stream. Call Next repeatedly to drain AnomalyContext items in
// strictly increasing Anomaly.Pos order (spec.md §4.4).
type ChunkProcessor struct {
	reader      *lines.BytesLines
	index       index.IndexReader
	isJobOutput bool
	skipLines   *dedup.KnownLines

	buffer       []bufferedLine
	targets      []string
	targetsCoord []int
	leftOvers    []string

	currentAnomaly *AnomalyContext
	anomalies      []AnomalyContext

	coord int

	LineCount int
	ByteCount int

	terminalErr error
	eof         bool
}

// NewChunkProcessor returns a processor over read. skipLines is
// exclusively owned by the processor's caller: dedup spans the
// lifetime of that handle, not of the processor, so one KnownLines set
// may be shared across several ChunkProcessor instances processing
// files from the same job (spec.md §9 DESIGN NOTES).
func NewChunkProcessor(read io.Reader, idx index.IndexReader, isJSON, isJobOutput bool, skipLines *dedup.KnownLines) *ChunkProcessor {
	return newChunkProcessor(lines.New(read, isJSON), idx, isJobOutput, skipLines)
}

// NewChunkProcessorWithField is like NewChunkProcessor but lets the
// caller override the JMESPath expression used to pull a line's text
// out of each JSON record (isJSON mode only).
func NewChunkProcessorWithField(read io.Reader, idx index.IndexReader, isJSON, isJobOutput bool, skipLines *dedup.KnownLines, field string) *ChunkProcessor {
	if !isJSON || field == "" {
		return NewChunkProcessor(read, idx, isJSON, isJobOutput, skipLines)
	}
	return newChunkProcessor(lines.NewWithField(read, isJSON, field), idx, isJobOutput, skipLines)
}

func newChunkProcessor(reader *lines.BytesLines, idx index.IndexReader, isJobOutput bool, skipLines *dedup.KnownLines) *ChunkProcessor {
	return &ChunkProcessor{
		reader:       reader,
		index:        idx,
		isJobOutput:  isJobOutput,
		skipLines:    skipLines,
		targets:      make([]string, 0, ChunkSize),
		targetsCoord: make([]int, 0, ChunkSize),
	}
}

// Next returns the next anomaly, or ok=false at end of stream. Once an
// error has been returned, every subsequent call also returns
// ok=false, err=nil (fail-fast).
func (p *ChunkProcessor) Next() (anomaly *AnomalyContext, ok bool, err error) {
	if p.terminalErr != nil {
		return nil, false, nil
	}
	for {
		if len(p.anomalies) > 0 {
			a := p.anomalies[0]
			p.anomalies = p.anomalies[1:]
			return &a, true, nil
		}
		if p.eof {
			return nil, false, nil
		}
		if err := p.readAnomalies(); err != nil {
			p.terminalErr = err
			p.eof = true
			return nil, false, err
		}
	}
}

// readAnomalies reads lines until the underlying framing is exhausted
// or at least one anomaly is queued (spec.md §4.4 "Read loop").
func (p *ChunkProcessor) readAnomalies() error {
	for {
		line, ok, err := p.reader.Next()
		if err != nil {
			return err
		}
		if !ok {
			p.flushAtEndOfStream()
			p.eof = true
			return nil
		}
		if !utf8.Valid(line.Bytes) {
			return &DecodeError{LineNumber: line.LineNumber}
		}

		raw := string(line.Bytes)
		p.LineCount++
		p.ByteCount += len(line.Bytes)
		p.coord++

		if p.isJobOutput && strings.Contains(raw, selfExclusionMarker) {
			p.flushAtEndOfStream()
			p.eof = true
			return nil
		}

		tokens := tokenizer.Tokenize(raw)
		p.buffer = append(p.buffer, bufferedLine{raw: raw, lineNumber: line.LineNumber, coord: p.coord})

		if p.skipLines.Insert(tokens) {
			p.targets = append(p.targets, tokens)
			p.targetsCoord = append(p.targetsCoord, p.coord)

			if len(p.targets) == ChunkSize {
				p.doSearchAnomalies()
				if len(p.anomalies) > 0 {
					return nil
				}
			}
		} else if len(p.buffer) > ChunkSize*10 {
			p.doSearchAnomalies()
			if len(p.anomalies) > 0 {
				return nil
			}
		}
	}
}

func (p *ChunkProcessor) flushAtEndOfStream() {
	if len(p.targets) > 0 {
		p.doSearchAnomalies()
	}
	if p.currentAnomaly != nil {
		p.anomalies = append(p.anomalies, *p.currentAnomaly)
		p.currentAnomaly = nil
	}
}

// doSearchAnomalies is the search phase (spec.md §4.4): it queries the
// index for the current chunk's targets, walks the distances aligned
// with the raw buffer, and updates the single-anomaly state machine.
func (p *ChunkProcessor) doSearchAnomalies() {
	span := opentracing.GlobalTracer().StartSpan("chunk_processor.do_search_anomalies")
	defer span.Finish()

	distances := p.index.Distance(p.targets)

	bufferPos := 0
	lastContextPos := 0

	for i, targetCoord := range p.targetsCoord {
		distance := distances[i]
		isAnomaly := distance > Threshold

		var targetLine string
		var targetLineNumber int
		matchedTarget := false

		for bufferPos < len(p.buffer) {
			entry := p.buffer[bufferPos]
			bufferPos++
			matched := entry.coord == targetCoord

			if matched && isAnomaly {
				targetLine = entry.raw
				targetLineNumber = entry.lineNumber
				matchedTarget = true
			} else if p.currentAnomaly != nil {
				p.currentAnomaly.After = append(p.currentAnomaly.After, entry.raw)
				if len(p.currentAnomaly.After) >= CtxDistance {
					p.anomalies = append(p.anomalies, *p.currentAnomaly)
					p.currentAnomaly = nil
				}
				lastContextPos = bufferPos
			}

			if matched {
				break
			}
		}

		if matchedTarget {
			if p.currentAnomaly != nil {
				// The open anomaly's after-context would otherwise
				// overlap the new anomaly's before-context: no line
				// is ever reused, so flush it now.
				p.anomalies = append(p.anomalies, *p.currentAnomaly)
				p.currentAnomaly = nil
			}

			before := collectBeforeBuffered(bufferPos-1, lastContextPos, p.buffer, p.leftOvers)
			lastContextPos = bufferPos

			p.currentAnomaly = &AnomalyContext{
				Before: before,
				After:  []string{},
				Anomaly: Anomaly{
					Distance: distance,
					Pos:      targetLineNumber,
					Line:     targetLine,
				},
			}
		} else if isAnomaly {
			level.Error(util.Logger).Log("msg", "invariant violation: anomalous target coord not found in buffer",
				"coord", targetCoord, "buffer_pos", bufferPos)
			panic("process: target coord " + strconv.Itoa(targetCoord) + " not found in buffer (buffer_pos=" + strconv.Itoa(bufferPos) + "):\n" + spew.Sdump(p.buffer))
		}
	}

	// Tail sweep: the chunk's last anomaly may still need after-context
	// from whatever of the buffer nothing has claimed yet.
	if p.currentAnomaly != nil && lastContextPos < len(p.buffer) {
		j := lastContextPos
		for ; j < len(p.buffer); j++ {
			p.currentAnomaly.After = append(p.currentAnomaly.After, p.buffer[j].raw)
			if len(p.currentAnomaly.After) >= CtxDistance {
				p.anomalies = append(p.anomalies, *p.currentAnomaly)
				p.currentAnomaly = nil
				j++
				break
			}
		}
		lastContextPos = j
	}

	p.reset(lastContextPos)
}

// reset clears the chunk accumulator and keeps at most CtxDistance
// trailing buffer lines as left-overs for the next chunk's before
// context (spec.md §4.4 "Reset").
func (p *ChunkProcessor) reset(leftOversPos int) {
	p.targets = p.targets[:0]
	p.targetsCoord = p.targetsCoord[:0]

	minLeftOversPos := 0
	if len(p.buffer) > CtxDistance {
		minLeftOversPos = len(p.buffer) - CtxDistance
	}
	start := leftOversPos
	if minLeftOversPos > start {
		start = minLeftOversPos
	}

	leftOvers := make([]string, 0, len(p.buffer)-start)
	for _, entry := range p.buffer[start:] {
		leftOvers = append(leftOvers, entry.raw)
	}
	p.leftOvers = leftOvers
	p.buffer = p.buffer[:0]
}
