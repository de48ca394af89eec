// Package csvtable encodes and decodes the beneficiary register as CSV.
//
// The dialect matches what spreadsheet tools export: comma separated, double-quote quoting,
// CRLF line endings, UTF-8 with an optional byte order mark.
package csvtable

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNoHeader is returned when the input holds no header row.
var ErrNoHeader = errors.New("missing header row")

// ErrInvalidUTF8 is returned when the input is not UTF-8 text.
var ErrInvalidUTF8 = errors.New("register is not valid UTF-8")

// Decode parses a register. Rows shorter than the header are padded with empty values;
// rows longer than the header are rejected, as are duplicate header names other than blank
// ones. Repeated blank header cells share one field, which holds the last of their values.
// Stray quotes inside unquoted fields are kept as text.
func Decode(r io.Reader) (recordstore.Table, error) {
	br := bufio.NewReader(r)
	var t recordstore.Table
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		t.BOM = true
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return recordstore.Table{}, ErrNoHeader
		}
		return recordstore.Table{}, err
	}
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if !utf8.ValidString(h) {
			return recordstore.Table{}, ErrInvalidUTF8
		}
		if strings.TrimSpace(h) == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			return recordstore.Table{}, fmt.Errorf("duplicate column %q in header", h)
		}
		seen[h] = struct{}{}
	}
	t.Columns = header
	t.Rows = []recordstore.Record{}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recordstore.Table{}, err
		}
		if len(fields) > len(header) {
			line, _ := cr.FieldPos(0)
			return recordstore.Table{}, fmt.Errorf("line %d: %d fields, header has %d", line, len(fields), len(header))
		}
		rec := make(recordstore.Record, len(header))
		for i, col := range header {
			if i < len(fields) {
				if !utf8.ValidString(fields[i]) {
					line, _ := cr.FieldPos(i)
					return recordstore.Table{}, fmt.Errorf("line %d: %w", line, ErrInvalidUTF8)
				}
				rec[col] = fields[i]
			} else {
				rec[col] = ""
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Encode writes the header then every row in order. A row holding a field that is not in
// the header is an error: the schema is never extended on write.
func Encode(w io.Writer, t recordstore.Table) error {
	if err := t.CheckSchema(); err != nil {
		return err
	}
	if t.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	fields := make([]string, len(t.Columns))
	for _, rec := range t.Rows {
		for j, c := range t.Columns {
			fields[j] = rec[c]
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Marshal encodes t into a byte slice.
func Marshal(t recordstore.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
