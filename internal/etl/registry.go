package etl

import (
	"strings"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
)

var (
	registryCharsets   = []string{CharsetUTF8SIG, CharsetUTF8, CharsetLatin1, CharsetCP1252}
	registryDelimiters = []rune{';', ','}
)

// NormalizeRegistryID canonicalizes an ANS registry identifier: trims
// whitespace, strips the ".0" float-serialization artifact some extracts
// carry, and left-pads with zeros to six digits.
func NormalizeRegistryID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if len(s) >= 6 {
		return s
	}
	return strings.Repeat("0", 6-len(s)) + s
}

// LoadRegistry parses the operator registry snapshot into canonical Operator
// records. Identifiers are normalized and deduplicated keeping the first
// occurrence; rows with an empty identifier are dropped. Returns a
// *FormatError when the file cannot be parsed or the identifier column is
// missing.
func LoadRegistry(data []byte, filename string) ([]domain.Operator, error) {
	tbl, err := parseTable(data, filename, registryCharsets, registryDelimiters)
	if err != nil {
		return nil, err
	}

	idCol := findColumn(tbl.headers, ruleRegistryID)
	if idCol < 0 {
		return nil, &FormatError{Filename: filename, Reason: "registry identifier column not found"}
	}
	cnpjCol := findColumn(tbl.headers, ruleCNPJ)
	nameCol := findColumn(tbl.headers, ruleRazaoSocial)
	ufCol := findColumn(tbl.headers, ruleUF)
	modCol := findColumn(tbl.headers, ruleModalidade)

	seen := make(map[string]bool)
	operators := make([]domain.Operator, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		raw := cell(row, idCol)
		if strings.TrimSuffix(raw, ".0") == "" {
			continue
		}

		id := NormalizeRegistryID(raw)
		if seen[id] {
			continue
		}
		seen[id] = true

		operators = append(operators, domain.Operator{
			RegistryANS: id,
			CNPJ:        cell(row, cnpjCol),
			RazaoSocial: cell(row, nameCol),
			Modalidade:  cell(row, modCol),
			UF:          cell(row, ufCol),
		})
	}

	return operators, nil
}
