// Package loader acquires the raw member extracts. The feeds deliver
// pipe-delimited latin-1 text either as a local file, over FTP, or as
// the newest object in a GCS bucket; the engine only sees the parsed
// *Extract and never cares where it came from.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Row is one raw extract row keyed by column name.
type Row map[string]string

// Extract is the parsed raw extract. A zero-row extract is valid: it
// simply yields no missing or changed members downstream.
type Extract struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the extract carries no rows.
func (e *Extract) Empty() bool {
	return e == nil || len(e.Rows) == 0
}

// DataLoader produces the raw extract for one run. Acquisition failure
// is fatal to the run; nothing is written before it succeeds.
type DataLoader interface {
	Load(ctx context.Context) (*Extract, error)
}

// Parse reads delimiter-separated latin-1 text into an Extract. The
// first record is the header; short rows are tolerated and missing
// trailing fields stay absent from the row map.
func Parse(r io.Reader, delimiter rune) (*Extract, error) {
	decoded := transform.NewReader(r, charmap.ISO8859_1.NewDecoder())

	cr := csv.NewReader(decoded)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse extract: %w", err)
	}
	if len(records) == 0 {
		return &Extract{}, nil
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
	}

	extract := &Extract{Columns: header, Rows: make([]Row, 0, len(records)-1)}
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		extract.Rows = append(extract.Rows, row)
	}

	return extract, nil
}
