package etl

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ecaldas/ans-expense-tracker/internal/domain"
	"github.com/ecaldas/ans-expense-tracker/internal/quality"
)

// DefaultTargetPrefix selects the claims-expense accounting line
// ("Eventos/Sinistros Conhecidos ou Avisados") in the ANS chart of accounts.
const DefaultTargetPrefix = "411"

var (
	statementCharsets   = []string{CharsetUTF8, CharsetLatin1, CharsetCP1252}
	statementDelimiters = []rune{';', ','}
)

// SkipReason says why a statement file was skipped. Skips are not failures:
// they mean the file is not a claims-expense extract, or carries nothing for
// the target account.
type SkipReason string

const (
	SkipMissingColumns  SkipReason = "account or value column not found"
	SkipNoPrefixMatch   SkipReason = "no rows match the target account prefix"
	SkipNothingSurvived SkipReason = "no rows survived cleaning and reconciliation"
)

// Options configures statement normalization. The zero value gets the
// default account prefix and the release charsets.
type Options struct {
	TargetPrefix string
	Charsets     []string
	Delimiters   []rune
}

func (o Options) withDefaults() Options {
	if o.TargetPrefix == "" {
		o.TargetPrefix = DefaultTargetPrefix
	}
	if len(o.Charsets) == 0 {
		o.Charsets = statementCharsets
	}
	if len(o.Delimiters) == 0 {
		o.Delimiters = statementDelimiters
	}
	return o
}

// StatementResult is the outcome of normalizing one statement file. Skipped
// results are successes that produced no lines, reported separately from
// *FormatError so callers can tell an irrelevant file from a broken one.
// The per-stage counts go on the load-run record.
type StatementResult struct {
	Lines      []domain.ExpenseLine
	Skipped    bool
	SkipReason SkipReason

	PrefixMatched int
	Cleaned       int
	Joined        int
	Deduped       int
	Validated     int
}

type statementRow struct {
	registryID string
	account    string
	amount     decimal.Decimal
	year       int
	quarter    int
}

// NormalizeStatement runs one quarterly statement file through the cleaning
// and reconciliation stages: prefix filter on the account code, monetary
// cleaning with a positivity filter, period extraction, inner join against
// the registry on the normalized identifier, re-filter to the exact account
// code, tuple dedup, and CNPJ checksum validation. One file maps to exactly
// one quarter, taken from the file name.
//
// Returns (*StatementResult, nil) for both produced lines and skips;
// a non-nil error means the file itself is unusable.
func NormalizeStatement(data []byte, filename string, registry []domain.Operator, opts Options) (*StatementResult, error) {
	opts = opts.withDefaults()

	tbl, err := parseTable(data, filename, opts.Charsets, opts.Delimiters)
	if err != nil {
		return nil, err
	}

	accountCol := findColumn(tbl.headers, ruleAccount)
	valueCol := findColumn(tbl.headers, ruleValue)
	idCol := findColumn(tbl.headers, ruleStatementID)
	dateCol := findColumn(tbl.headers, ruleDate)

	res := &StatementResult{}
	if accountCol < 0 || valueCol < 0 {
		res.Skipped = true
		res.SkipReason = SkipMissingColumns
		return res, nil
	}

	// Prefix filter first: it cuts the file down by orders of magnitude
	// before any cleaning happens.
	var prefixRows [][]string
	for _, row := range tbl.rows {
		if strings.HasPrefix(cell(row, accountCol), opts.TargetPrefix) {
			prefixRows = append(prefixRows, row)
		}
	}
	res.PrefixMatched = len(prefixRows)
	if len(prefixRows) == 0 {
		res.Skipped = true
		res.SkipReason = SkipNoPrefixMatch
		return res, nil
	}

	quarter := QuarterFromFilename(filename)

	var rows []statementRow
	for _, row := range prefixRows {
		amount := CleanMonetaryValue(cell(row, valueCol))
		if !amount.IsPositive() {
			continue
		}
		year, ok := yearFromDateCell(cell(row, dateCol))
		if !ok {
			continue
		}
		rows = append(rows, statementRow{
			registryID: cell(row, idCol),
			account:    cell(row, accountCol),
			amount:     amount,
			year:       year,
			quarter:    quarter,
		})
	}
	res.Cleaned = len(rows)

	if len(registry) > 0 && idCol >= 0 {
		res.Lines = reconcile(rows, registry, opts.TargetPrefix, res)
	} else {
		// Nothing to reconcile against: keep the cleaned rows keyed by the
		// normalized raw identifier only.
		for _, r := range rows {
			res.Lines = append(res.Lines, domain.ExpenseLine{
				RegistryANS: NormalizeRegistryID(r.registryID),
				AccountCode: r.account,
				Amount:      r.amount,
				Year:        r.year,
				Quarter:     r.quarter,
			})
		}
	}

	if len(res.Lines) == 0 {
		res.Skipped = true
		res.SkipReason = SkipNothingSurvived
	}
	return res, nil
}

// reconcile joins cleaned statement rows against the registry, re-filters to
// the exact account code, drops duplicate tuples and rows whose operator has
// an invalid CNPJ.
func reconcile(rows []statementRow, registry []domain.Operator, targetPrefix string, res *StatementResult) []domain.ExpenseLine {
	byID := make(map[string]domain.Operator, len(registry))
	for _, op := range registry {
		if _, dup := byID[op.RegistryANS]; !dup {
			byID[op.RegistryANS] = op
		}
	}

	var joined []domain.ExpenseLine
	for _, r := range rows {
		// Inner join: statement rows for operators absent from the registry
		// snapshot are dropped.
		op, ok := byID[NormalizeRegistryID(r.registryID)]
		if !ok {
			continue
		}
		joined = append(joined, domain.ExpenseLine{
			RegistryANS: op.RegistryANS,
			CNPJ:        op.CNPJ,
			RazaoSocial: op.RazaoSocial,
			UF:          op.UF,
			AccountCode: r.account,
			Amount:      r.amount,
			Year:        r.year,
			Quarter:     r.quarter,
		})
	}
	res.Joined = len(joined)

	// Exact re-filter: the prefix filter also admits sub-accounts
	// ("4111000"), whose amounts are already contained in the parent line.
	// Keeping both would double count.
	type lineKey struct {
		id, account, amount string
		year, quarter       int
	}
	seen := make(map[lineKey]bool)
	var deduped []domain.ExpenseLine
	for _, l := range joined {
		if l.AccountCode != targetPrefix {
			continue
		}
		k := lineKey{l.RegistryANS, l.AccountCode, l.Amount.String(), l.Year, l.Quarter}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, l)
	}
	res.Deduped = len(deduped)

	var valid []domain.ExpenseLine
	for _, l := range deduped {
		if quality.ValidateCNPJ(l.CNPJ) {
			valid = append(valid, l)
		}
	}
	res.Validated = len(valid)
	return valid
}
