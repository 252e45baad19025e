package process

import (
	"io"
	"unicode/utf8"

	"github.com/go-kit/kit/log/level"
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/famarks/logscope/internal/util"
	"github.com/famarks/logscope/pkg/dedup"
	"github.com/famarks/logscope/pkg/index"
	"github.com/famarks/logscope/pkg/lines"
	"github.com/famarks/logscope/pkg/tokenizer"
)

// IndexTrainer consumes one or more baseline readers and produces a
// searchable index of their unique tokenized lines (spec.md §4.2).
type IndexTrainer struct {
	builder   index.IndexBuilder
	isJSON    bool
	skipLines *dedup.KnownLines

	LineCount int
	ByteCount int
}

// NewIndexTrainer returns a trainer that will feed unique tokenized
// lines to builder. isJSON selects BytesLines' JSON framing mode.
func NewIndexTrainer(builder index.IndexBuilder, isJSON bool) *IndexTrainer {
	return &IndexTrainer{
		builder:   builder,
		isJSON:    isJSON,
		skipLines: dedup.New(),
	}
}

// TrainSingle is the convenience path: new trainer, add one reader,
// build.
func TrainSingle(builder index.IndexBuilder, isJSON bool, read io.Reader) (index.IndexReader, error) {
	t := NewIndexTrainer(builder, isJSON)
	if err := t.Add(read); err != nil {
		return nil, err
	}
	return t.Build(), nil
}

// Add frames, tokenizes, and deduplicates every line of read, feeding
// unique tokens to the builder. Duplicates (by tokenized content) are
// dropped. Add never retains raw line bytes past the line that
// produced them.
func (t *IndexTrainer) Add(read io.Reader) error {
	span := opentracing.GlobalTracer().StartSpan("trainer.add")
	defer span.Finish()

	reader := lines.New(read, t.isJSON)
	for {
		line, ok, err := reader.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if !utf8.Valid(line.Bytes) {
			return &DecodeError{LineNumber: line.LineNumber}
		}

		t.LineCount++
		t.ByteCount += len(line.Bytes)

		tokens := tokenizer.Tokenize(string(line.Bytes))
		if t.skipLines.Insert(tokens) {
			t.builder.Add(tokens)
		}
	}
	level.Debug(util.Logger).Log("msg", "added one source", "skip_lines", t.skipLines.Len())
	return nil
}

// Build consumes the trainer and returns the built index.
func (t *IndexTrainer) Build() index.IndexReader {
	return t.builder.Build()
}
