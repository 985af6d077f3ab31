package etl

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

func TestWriteConsolidatedCSV(t *testing.T) {
	lines := []domain.ExpenseLine{
		{
			CNPJ:        "11222333000181",
			RazaoSocial: "OPERADORA ALFA",
			Quarter:     1,
			Year:        2024,
			Amount:      decimal.RequireFromString("1500"),
		},
	}

	var buf bytes.Buffer
	if err := WriteConsolidatedCSV(&buf, lines); err != nil {
		t.Fatalf("WriteConsolidatedCSV() error = %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, utf8BOM) {
		t.Error("output missing UTF-8 BOM")
	}

	text := string(bytes.TrimPrefix(out, utf8BOM))
	rows := strings.Split(strings.TrimSpace(text), "\n")
	if rows[0] != "cnpj;razao_social;trimestre;ano;valor" {
		t.Errorf("header = %q", rows[0])
	}
	if rows[1] != "11222333000181;OPERADORA ALFA;1;2024;1500.00" {
		t.Errorf("row = %q", rows[1])
	}
}

func TestWriteAggregateCSV(t *testing.T) {
	rows := []domain.AggregateRow{
		{
			RazaoSocial: "OPERADORA ALFA",
			UF:          "SP",
			Total:       decimal.RequireFromString("650"),
			Mean:        216.666666,
			StdDev:      104.083299,
		},
	}

	var buf bytes.Buffer
	if err := WriteAggregateCSV(&buf, rows); err != nil {
		t.Fatalf("WriteAggregateCSV() error = %v", err)
	}

	text := string(bytes.TrimPrefix(buf.Bytes(), utf8BOM))
	got := strings.Split(strings.TrimSpace(text), "\n")
	if got[0] != "razao_social;uf;total_despesas;media_trimestral;desvio_padrao" {
		t.Errorf("header = %q", got[0])
	}
	if got[1] != "OPERADORA ALFA;SP;650.00;216.67;104.08" {
		t.Errorf("row = %q", got[1])
	}
}

func TestZipBundle(t *testing.T) {
	contents := []byte("cnpj;razao_social\n123;ALFA\n")

	packed, err := ZipBundle("consolidado_despesas.csv", contents)
	if err != nil {
		t.Fatalf("ZipBundle() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(packed), int64(len(packed)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(zr.File))
	}
	if zr.File[0].Name != "consolidado_despesas.csv" {
		t.Errorf("entry name = %q", zr.File[0].Name)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("opening entry: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Errorf("entry contents = %q, want %q", got, contents)
	}
}
