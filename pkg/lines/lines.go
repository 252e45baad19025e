// Package lines implements the line-framing collaborator (BytesLines,
// spec.md §6): a lazy sequence of (bytes, line_number) items with
// per-item error, over either newline-delimited text or NDJSON records.
package lines

import (
	"bufio"
	"bytes"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/jmespath/go-jmespath"
	"github.com/pkg/errors"
)

// LogLine is the raw content of one source line plus its 1-based
// position in the underlying framing (spec.md §3). In JSON mode
// LineNumber is the JSON record index rather than a byte-stream line
// count.
type LogLine struct {
	Bytes      []byte
	LineNumber int
}

// DefaultMessageField is the JMESPath expression used to pull the text
// content out of each JSON record when no field is configured.
const DefaultMessageField = "message"

// BytesLines is a pull-based line reader: call Next repeatedly until it
// reports end-of-stream. A decode or I/O error is surfaced once, in
// place of the next item; BytesLines treats it as terminal and every
// subsequent call reports end-of-stream.
type BytesLines struct {
	br         *bufio.Reader
	isJSON     bool
	expr       *jmespath.JMESPath
	lineNumber int
	done       bool
}

// New returns a BytesLines over read. When isJSON is true, each line is
// decoded as a JSON record and DefaultMessageField is extracted as the
// line's text.
func New(read io.Reader, isJSON bool) *BytesLines {
	return NewWithField(read, isJSON, DefaultMessageField)
}

// NewWithField is like New but lets the caller pick the JMESPath
// expression used to extract a JSON record's text content.
func NewWithField(read io.Reader, isJSON bool, field string) *BytesLines {
	b := &BytesLines{
		br:     bufio.NewReaderSize(read, 64*1024),
		isJSON: isJSON,
	}
	if isJSON {
		// A bad expression means every line will fail to decode; that
		// failure surfaces through Next rather than here, since New
		// has no error return in the teacher's line-framing contract.
		b.expr, _ = jmespath.Compile(field)
	}
	return b
}

// Next returns the next framed line. ok is false at end-of-stream (err
// is nil in that case) or once a prior call has already returned a
// terminal error.
func (b *BytesLines) Next() (line LogLine, ok bool, err error) {
	if b.done {
		return LogLine{}, false, nil
	}

	raw, readErr := b.br.ReadBytes('\n')
	if len(raw) == 0 {
		b.done = true
		if readErr == io.EOF {
			return LogLine{}, false, nil
		}
		return LogLine{}, false, errors.Wrap(readErr, "reading line")
	}
	if readErr == io.EOF {
		// Last line of the stream had no trailing newline.
		b.done = true
	} else if readErr != nil {
		b.done = true
		return LogLine{}, false, errors.Wrap(readErr, "reading line")
	}

	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	b.lineNumber++

	if !b.isJSON {
		return LogLine{Bytes: raw, LineNumber: b.lineNumber}, true, nil
	}

	text, decodeErr := extractField(raw, b.expr)
	if decodeErr != nil {
		b.done = true
		return LogLine{}, false, errors.Wrapf(decodeErr, "decoding JSON record %d", b.lineNumber)
	}
	return LogLine{Bytes: text, LineNumber: b.lineNumber}, true, nil
}

func extractField(raw []byte, expr *jmespath.JMESPath) ([]byte, error) {
	if expr == nil {
		return nil, errors.New("no JSON field expression configured")
	}
	var record interface{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	value, err := expr.Search(record)
	if err != nil {
		return nil, err
	}
	text, ok := value.(string)
	if !ok {
		return nil, errors.Errorf("JSON field did not resolve to a string: %v", value)
	}
	return []byte(text), nil
}
