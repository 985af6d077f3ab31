package etl

import "strings"

// columnRule locates one logical column in a header row by fuzzy substring
// matching. Column names drift across ANS releases, so discovery is always
// name-based, never positional. A header matches when every substring of at
// least one anyOf group is present and no excludes substring is. Matching is
// case-insensitive.
//
// New header variants are handled by appending substring groups here, not by
// touching the loaders.
type columnRule struct {
	anyOf    [][]string
	excludes []string
}

func (r columnRule) matches(header string) bool {
	h := strings.ToUpper(header)
	for _, ex := range r.excludes {
		if strings.Contains(h, ex) {
			return false
		}
	}
	for _, group := range r.anyOf {
		all := true
		for _, sub := range group {
			if !strings.Contains(h, sub) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// findColumn returns the index of the first header matching the rule,
// or -1 when none does.
func findColumn(headers []string, rule columnRule) int {
	for i, h := range headers {
		if rule.matches(h) {
			return i
		}
	}
	return -1
}

// Registry snapshot columns. The identifier rule excludes "DATA" so
// "Data_Registro_ANS" is never mistaken for the id column.
var (
	ruleRegistryID = columnRule{
		anyOf:    [][]string{{"REGISTRO", "OPERADORA"}, {"REGISTRO", "ANS"}},
		excludes: []string{"DATA"},
	}
	ruleCNPJ        = columnRule{anyOf: [][]string{{"CNPJ"}}}
	ruleRazaoSocial = columnRule{anyOf: [][]string{{"RAZAO"}, {"RAZÃO"}, {"SOCIAL"}}}
	ruleUF          = columnRule{anyOf: [][]string{{"UF"}}}
	ruleModalidade  = columnRule{anyOf: [][]string{{"MODALIDADE"}}}
)

// Quarterly statement columns.
var (
	ruleAccount     = columnRule{anyOf: [][]string{{"CONTA"}}}
	ruleValue       = columnRule{anyOf: [][]string{{"VALOR"}, {"SALDO"}}}
	ruleStatementID = columnRule{anyOf: [][]string{{"REG", "ANS"}}}
	ruleDate        = columnRule{anyOf: [][]string{{"DATA"}}}
)
