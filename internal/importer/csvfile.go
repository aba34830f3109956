package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNoKnownColumns is returned when a CSV header names none of the catalog fields.
var ErrNoKnownColumns = errors.New("csv header does not contain any known column")

// SheetHeader describes how a source column was mapped.
type SheetHeader struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
	Key    string `json:"key,omitempty"`
}

// Sheet is a parsed spreadsheet ready for validation.
type Sheet struct {
	Headers []SheetHeader
	Rows    []Row
}

// ParseCSV decodes a CSV upload into rows keyed by field. Files may be UTF-8
// (with or without BOM), UTF-16 with BOM, or Windows-1252. Headers match a
// field key or label ignoring case and accents. Unknown columns are dropped.
func (c *Catalog) ParseCSV(r io.Reader) (*Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoKnownColumns
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headerLine, _ := reader.FieldPos(0)

	sheet := &Sheet{Headers: make([]SheetHeader, len(header))}
	columns := make(map[int]Field, len(header))
	for i, h := range header {
		sh := SheetHeader{Index: i, Header: strings.TrimSpace(h)}
		if f, ok := c.MatchHeader(h); ok {
			if _, taken := fieldColumn(columns, f); !taken {
				columns[i] = f
				sh.Key = f.Key()
			}
		}
		sheet.Headers[i] = sh
	}
	if len(columns) == 0 {
		return nil, ErrNoKnownColumns
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blankRecord(record) {
			continue
		}
		// row indexes follow the physical line so skipped blank lines keep
		// reported line numbers aligned with the file
		line, _ := reader.FieldPos(0)
		rowIndex := line - headerLine - 1
		row := make(Row, len(columns))
		for col, f := range columns {
			var text string
			if col < len(record) {
				text = record[col]
			}
			row[f.Key()] = Cell{Value: String(text), RowIndex: rowIndex, ColIndex: col}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// MatchHeader resolves a spreadsheet header to a field.
func (c *Catalog) MatchHeader(header string) (Field, bool) {
	needle := compactHeader(header)
	if needle == "" {
		return 0, false
	}
	for _, spec := range c.specs {
		if needle == compactHeader(spec.Key) || needle == compactHeader(spec.Label) {
			return spec.Field, true
		}
	}
	return 0, false
}

// compactHeader ignores separators so "E-mail" matches "email".
func compactHeader(s string) string {
	return strings.ReplaceAll(normalizeHeader(s), "_", "")
}

func fieldColumn(columns map[int]Field, f Field) (int, bool) {
	for col, existing := range columns {
		if existing == f {
			return col, true
		}
	}
	return 0, false
}

func decode(raw []byte) ([]byte, error) {
	fallback := xunicode.UTF8.NewDecoder()
	if !utf8.Valid(raw) && !hasUTF16BOM(raw) {
		fallback = charmap.Windows1252.NewDecoder()
	}
	out, _, err := transform.Bytes(xunicode.BOMOverride(fallback.Transformer), raw)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return out, nil
}

func hasUTF16BOM(raw []byte) bool {
	return len(raw) >= 2 && ((raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF))
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader lowercases, strips accents and collapses separators to '_'.
func normalizeHeader(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	lastSep := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
