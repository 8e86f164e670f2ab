// Package rules implements the deterministic rule evaluation engine: a small
// interpreter that matches transaction records against short, human-authored
// comparison expressions without a full expression-language parser.
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// Recognized two-letter jurisdiction tokens. A token from this vocabulary
// appearing in an expression that does not equal the transaction's country
// causes the match to fail; unknown two-letter words are ignored.
var countryVocabulary = map[string]bool{
	"US": true,
	"CN": true,
	"RU": true,
	"UK": true,
	"KY": true,
}

var (
	amountLowerRe = regexp.MustCompile(`amount >\s*(\d+(?:\.\d+)?)`)
	amountUpperRe = regexp.MustCompile(`amount <\s*(\d+(?:\.\d+)?)`)
	typeEqRe      = regexp.MustCompile(`type =\s*(\w+)`)
)

// Matches reports whether the transaction satisfies every clause present in
// the expression. Clauses are conjunctive filters: absence of a clause type
// means "no constraint from that dimension". The function is pure and total;
// on any unrecognized or malformed clause, or any internal evaluation error,
// it fails closed and returns false rather than propagating an error.
func Matches(tx *domain.Transaction, expression string) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	if tx == nil {
		return false
	}

	logic := strings.ToLower(expression)

	// Numeric lower/upper bounds on the amount.
	if strings.Contains(logic, "amount >") {
		m := amountLowerRe.FindStringSubmatch(logic)
		if m != nil {
			bound, err := strconv.ParseFloat(m[1], 64)
			if err != nil || tx.Amount <= bound {
				return false
			}
		}
	}
	if strings.Contains(logic, "amount <") {
		m := amountUpperRe.FindStringSubmatch(logic)
		if m != nil {
			bound, err := strconv.ParseFloat(m[1], 64)
			if err != nil || tx.Amount >= bound {
				return false
			}
		}
	}

	// Jurisdiction equality against the known country-code vocabulary.
	if strings.Contains(logic, "country =") || strings.Contains(logic, "country is") {
		for _, word := range strings.Fields(logic) {
			if len(word) != 2 {
				continue
			}
			token := strings.ToUpper(word)
			if countryVocabulary[token] && token != tx.Country {
				return false
			}
		}
	}

	// Cross-border boolean flag.
	if strings.Contains(logic, "cross-border") || strings.Contains(logic, "cross_border") {
		if strings.Contains(logic, "true") && !tx.IsCrossBorder {
			return false
		}
		if strings.Contains(logic, "false") && tx.IsCrossBorder {
			return false
		}
	}

	// Transaction type equality, case-insensitive.
	if strings.Contains(logic, "type =") {
		m := typeEqRe.FindStringSubmatch(logic)
		if m != nil && !strings.EqualFold(tx.Type, m[1]) {
			return false
		}
	}

	return true
}
