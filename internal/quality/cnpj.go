package quality

// CNPJ check-digit coefficient tables. The first check digit is computed
// over the 12 base digits, the second over the base digits plus the first
// check digit.
var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ reports whether a national tax identifier has a valid
// two-check-digit checksum. Formatting characters (dots, slashes, dashes,
// spaces) are stripped before validation; anything that does not reduce to
// 14 digits is invalid.
func ValidateCNPJ(cnpj string) bool {
	cleaned := stripNonDigits(cnpj)
	if len(cleaned) != 14 {
		return false
	}

	// Sequences like 00000000000000 satisfy the checksum but are not
	// assignable CNPJs.
	if allSameDigit(cleaned) {
		return false
	}

	if cnpjCheckDigit(cleaned, cnpjWeightsFirst) != int(cleaned[12]-'0') {
		return false
	}
	return cnpjCheckDigit(cleaned, cnpjWeightsSecond) == int(cleaned[13]-'0')
}

// cnpjCheckDigit computes one mod-11 check digit over len(weights) leading
// digits of the identifier.
func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}

	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func stripNonDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
