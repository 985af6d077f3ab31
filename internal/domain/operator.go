package domain

// Operator is one active health-plan operator from the ANS registry
// snapshot ("Relatorio_cadop"). RegistryANS is the regulator-assigned
// identifier, normalized to six zero-padded digits; it is the key that links
// an operator to its quarterly expense lines.
type Operator struct {
	RegistryANS string
	CNPJ        string
	RazaoSocial string
	Modalidade  string
	UF          string
}
