package etl

import (
	"errors"
	"testing"
)

func TestNormalizeRegistryID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "zero pads short id", raw: "7", want: "000007"},
		{name: "strips float artifact", raw: "7.0", want: "000007"},
		{name: "trims whitespace", raw: " 42 ", want: "000042"},
		{name: "six digits unchanged", raw: "123456", want: "123456"},
		{name: "longer than six unchanged", raw: "1234567", want: "1234567"},
		{name: "float artifact then pad", raw: "419761.0", want: "419761"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRegistryID(tt.raw); got != tt.want {
				t.Errorf("NormalizeRegistryID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	data := []byte("Registro_ANS;CNPJ;Razao_Social;Modalidade;UF;Data_Registro_ANS\n" +
		"42;11222333000181;OPERADORA ALFA;Cooperativa Medica;SP;2001-05-20\n" +
		"419761.0;11444777000161;OPERADORA BETA;Medicina de Grupo;RJ;1999-01-10\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 2 {
		t.Fatalf("LoadRegistry() returned %d operators, want 2", len(operators))
	}

	first := operators[0]
	if first.RegistryANS != "000042" {
		t.Errorf("RegistryANS = %q, want %q", first.RegistryANS, "000042")
	}
	if first.CNPJ != "11222333000181" {
		t.Errorf("CNPJ = %q, want %q", first.CNPJ, "11222333000181")
	}
	if first.RazaoSocial != "OPERADORA ALFA" {
		t.Errorf("RazaoSocial = %q, want %q", first.RazaoSocial, "OPERADORA ALFA")
	}
	if first.UF != "SP" {
		t.Errorf("UF = %q, want %q", first.UF, "SP")
	}
	if first.Modalidade != "Cooperativa Medica" {
		t.Errorf("Modalidade = %q, want %q", first.Modalidade, "Cooperativa Medica")
	}

	if operators[1].RegistryANS != "419761" {
		t.Errorf("second RegistryANS = %q, want %q", operators[1].RegistryANS, "419761")
	}
}

func TestLoadRegistry_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte("Registro_Operadora;CNPJ;Razao_Social;UF\n7;11222333000181;ALFA;SP\n")...)

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("LoadRegistry() returned %d operators, want 1", len(operators))
	}
	if operators[0].RegistryANS != "000007" {
		t.Errorf("RegistryANS = %q, want %q", operators[0].RegistryANS, "000007")
	}
}

func TestLoadRegistry_Latin1(t *testing.T) {
	// 0xE3 = a-tilde, 0xDA = U-acute in latin-1; invalid as UTF-8.
	data := []byte("Registro_ANS;CNPJ;Raz\xe3o_Social;UF\n42;11222333000181;SA\xdaDE ALFA;SP\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("LoadRegistry() returned %d operators, want 1", len(operators))
	}
	if operators[0].RazaoSocial != "SAÚDE ALFA" {
		t.Errorf("RazaoSocial = %q, want %q", operators[0].RazaoSocial, "SAÚDE ALFA")
	}
}

func TestLoadRegistry_CommaFallback(t *testing.T) {
	data := []byte("Registro_ANS,CNPJ,Razao_Social,UF\n42,11222333000181,ALFA,SP\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("LoadRegistry() returned %d operators, want 1", len(operators))
	}
}

func TestLoadRegistry_DedupKeepsFirst(t *testing.T) {
	data := []byte("Registro_ANS;CNPJ;Razao_Social;UF\n" +
		"42;11222333000181;PRIMEIRA;SP\n" +
		"42;11444777000161;SEGUNDA;RJ\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("LoadRegistry() returned %d operators, want 1", len(operators))
	}
	if operators[0].RazaoSocial != "PRIMEIRA" {
		t.Errorf("RazaoSocial = %q, want first occurrence %q", operators[0].RazaoSocial, "PRIMEIRA")
	}
}

func TestLoadRegistry_SkipsEmptyIdentifier(t *testing.T) {
	data := []byte("Registro_ANS;CNPJ;Razao_Social;UF\n" +
		";11222333000181;SEM ID;SP\n" +
		"42;11444777000161;COM ID;RJ\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(operators) != 1 {
		t.Fatalf("LoadRegistry() returned %d operators, want 1", len(operators))
	}
	if operators[0].RazaoSocial != "COM ID" {
		t.Errorf("RazaoSocial = %q, want %q", operators[0].RazaoSocial, "COM ID")
	}
}

func TestLoadRegistry_MissingIdentifierColumn(t *testing.T) {
	data := []byte("CNPJ;Razao_Social;UF\n11222333000181;ALFA;SP\n")

	_, err := LoadRegistry(data, "Relatorio_cadop.csv")
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("LoadRegistry() error = %v, want *FormatError", err)
	}
}

func TestLoadRegistry_UnparseableFile(t *testing.T) {
	// Single-column header under every delimiter.
	data := []byte("cabecalho\nlinha\n")

	_, err := LoadRegistry(data, "garbage.csv")
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("LoadRegistry() error = %v, want *FormatError", err)
	}
}

func TestLoadRegistry_IdentifierColumnIgnoresDateColumn(t *testing.T) {
	// Data_Registro_ANS contains REGISTRO and ANS but must not be picked.
	data := []byte("Data_Registro_ANS;Registro_ANS;CNPJ;Razao_Social;UF\n" +
		"2001-05-20;42;11222333000181;ALFA;SP\n")

	operators, err := LoadRegistry(data, "Relatorio_cadop.csv")
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if operators[0].RegistryANS != "000042" {
		t.Errorf("RegistryANS = %q, want %q", operators[0].RegistryANS, "000042")
	}
}
