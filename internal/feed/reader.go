package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyFeed is returned when the feed has no header row.
var ErrEmptyFeed = errors.New("feed has no header row")

// RowError wraps a malformed line. Callers count it and keep reading.
type RowError struct {
	Err  error
	Line int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("malformed feed row at line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RowSource yields raw feed rows one at a time.
// Next returns io.EOF when the feed is exhausted and *RowError for a row
// that could not be parsed; any other error aborts the read.
type RowSource interface {
	Next() (Row, error)
}

// Reader streams a delimited roll export with a header row.
type Reader struct {
	csv    *csv.Reader
	header []string
}

// NewReader creates a Reader for the given delimiter and consumes the header row.
func NewReader(r io.Reader, delimiter rune) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFeed
		}
		return nil, fmt.Errorf("failed to read feed header: %w", err)
	}

	// The header slice is reused by the csv reader, so keep our own copy
	cols := append([]string(nil), header...)
	if len(cols) > 0 {
		cols[0] = strings.TrimPrefix(cols[0], "\ufeff")
	}

	return &Reader{csv: cr, header: cols}, nil
}

// Header returns the feed's column names as read.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next row of the feed.
func (r *Reader) Next() (Row, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &RowError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return NewRow(r.header, record), nil
}

// ParseDelimiter turns a configured delimiter ("," "|" "\t" "tab") into a rune.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", ",", "comma":
		return ',', nil
	case "|", "pipe":
		return '|', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	}
	return 0, fmt.Errorf("unsupported feed delimiter %q", s)
}
