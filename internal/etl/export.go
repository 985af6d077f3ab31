package etl

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

// Export bundle names. The CSV goes inside a zip of the same base name.
const (
	ConsolidatedCSVName = "consolidado_despesas.csv"
	AggregateCSVName    = "despesas_agregadas.csv"
)

// WriteConsolidatedCSV writes the deduplicated export rows as UTF-8 with a
// BOM and `;` separators, so spreadsheet software opens it with accents and
// columns intact. Amounts are printed with exactly two decimal places.
func WriteConsolidatedCSV(w io.Writer, lines []domain.ExpenseLine) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("WriteConsolidatedCSV: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"cnpj", "razao_social", "trimestre", "ano", "valor"}); err != nil {
		return fmt.Errorf("WriteConsolidatedCSV: %w", err)
	}
	for _, l := range lines {
		record := []string{
			l.CNPJ,
			l.RazaoSocial,
			strconv.Itoa(l.Quarter),
			strconv.Itoa(l.Year),
			l.Amount.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteConsolidatedCSV: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteConsolidatedCSV: %w", err)
	}
	return nil
}

// WriteAggregateCSV writes the per-operator aggregates in the same dialect
// as the consolidated export.
func WriteAggregateCSV(w io.Writer, rows []domain.AggregateRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("WriteAggregateCSV: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	header := []string{"razao_social", "uf", "total_despesas", "media_trimestral", "desvio_padrao"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteAggregateCSV: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.RazaoSocial,
			r.UF,
			r.Total.StringFixed(2),
			strconv.FormatFloat(r.Mean, 'f', 2, 64),
			strconv.FormatFloat(r.StdDev, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteAggregateCSV: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteAggregateCSV: %w", err)
	}
	return nil
}

// ZipBundle packs one named file into an in-memory zip archive.
func ZipBundle(filename string, contents []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	f, err := zw.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("ZipBundle: creating entry: %w", err)
	}
	if _, err := f.Write(contents); err != nil {
		return nil, fmt.Errorf("ZipBundle: writing entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("ZipBundle: closing archive: %w", err)
	}
	return buf.Bytes(), nil
}
