package etl

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FormatError reports a raw file that could not be parsed at all: no
// encoding/delimiter combination produced a usable table, or the header is
// missing a column the pipeline cannot work without. It is a hard failure,
// distinct from a skip (see StatementResult).
type FormatError struct {
	Filename string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %s: %s", e.Filename, e.Reason)
}

// Charset names accepted by decodeCharset, tried in the order the callers
// list them. The ANS releases are inconsistent: the registry snapshot is
// usually UTF-8 with a BOM, older statement extracts come as latin-1 or
// windows-1252.
const (
	CharsetUTF8SIG = "utf-8-sig"
	CharsetUTF8    = "utf-8"
	CharsetLatin1  = "latin-1"
	CharsetCP1252  = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// table is one fully decoded delimited file: a header row plus data rows.
// Every cell stays a string so leading zeros in identifiers survive.
type table struct {
	headers []string
	rows    [][]string
}

// cell reads a column from a row, tolerating ragged rows and absent
// columns (index -1).
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func decodeCharset(data []byte, charset string) ([]byte, error) {
	switch charset {
	case CharsetUTF8SIG:
		trimmed := bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(trimmed) {
			return nil, fmt.Errorf("decodeCharset: not valid UTF-8")
		}
		return trimmed, nil
	case CharsetUTF8:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("decodeCharset: not valid UTF-8")
		}
		return data, nil
	case CharsetLatin1:
		return charmap.ISO8859_1.NewDecoder().Bytes(data)
	case CharsetCP1252:
		return charmap.Windows1252.NewDecoder().Bytes(data)
	default:
		return nil, fmt.Errorf("decodeCharset: unknown charset %q", charset)
	}
}

// parseTable decodes raw bytes into a table, trying each charset and, within
// it, each delimiter. A combination is accepted only when the whole file
// parses and the header splits into at least two columns; a `;` file read
// with `,` yields a single-column header and falls through to the next
// attempt. Returns *FormatError when every combination fails.
func parseTable(data []byte, filename string, charsets []string, delimiters []rune) (*table, error) {
	for _, charset := range charsets {
		decoded, err := decodeCharset(data, charset)
		if err != nil {
			continue
		}

		for _, delim := range delimiters {
			reader := csv.NewReader(bytes.NewReader(decoded))
			reader.Comma = delim
			reader.LazyQuotes = true
			reader.FieldsPerRecord = -1

			records, err := reader.ReadAll()
			if err != nil || len(records) == 0 {
				continue
			}
			if len(records[0]) < 2 {
				continue
			}

			return &table{headers: records[0], rows: records[1:]}, nil
		}
	}

	return nil, &FormatError{
		Filename: filename,
		Reason:   "no encoding/delimiter combination produced a usable table",
	}
}
