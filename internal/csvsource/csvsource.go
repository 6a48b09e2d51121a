// Package csvsource streams the data rows of a headed CSV file as
// column-to-value maps. A malformed row is reported and skipped; it does not
// end the stream.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one data row keyed by header column.
type Row struct {
	Line   int
	Values map[string]string
}

// RowError describes a row that could not be read.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader yields rows from an underlying CSV stream. Leading whitespace in
// fields is trimmed.
type Reader struct {
	cr     *csv.Reader
	header []string
}

// NewReader reads the header line from r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csvsource: missing header")
		}
		return nil, fmt.Errorf("csvsource: read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	cr.FieldsPerRecord = len(header)

	return &Reader{cr: cr, header: header}, nil
}

// Header returns the column names.
func (r *Reader) Header() []string { return append([]string(nil), r.header...) }

// Next returns the next row. A *RowError means that row was skipped and the
// caller may keep reading; io.EOF ends the stream; anything else is fatal.
func (r *Reader) Next() (Row, error) {
	rec, err := r.cr.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{}, &RowError{Line: pe.StartLine, Err: pe.Err}
		}
		return Row{}, err
	}
	line, _ := r.cr.FieldPos(0)

	values := make(map[string]string, len(r.header))
	for i, col := range r.header {
		values[col] = rec[i]
	}
	return Row{Line: line, Values: values}, nil
}

// Batch is every good row of a source plus the rows that were skipped.
type Batch struct {
	Columns []string
	Rows    []Row
	Errors  []*RowError
}

// ReadAll drains r into a Batch.
func ReadAll(r *Reader) (Batch, error) {
	b := Batch{Columns: r.Header()}
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		var re *RowError
		if errors.As(err, &re) {
			b.Errors = append(b.Errors, re)
			continue
		}
		if err != nil {
			return b, err
		}
		b.Rows = append(b.Rows, row)
	}
}

// ReadFile opens path and drains it. The source can be read again only by
// calling ReadFile again.
func ReadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("csvsource: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return Batch{}, err
	}
	return ReadAll(r)
}
