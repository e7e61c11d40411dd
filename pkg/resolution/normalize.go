// Package resolution decides whether two entity mentions refer to the same
// real-world entity.
//
// Resolution is two-phase. A deterministic pre-filter normalizes both names
// and merges on identical or containing forms. Everything else defers to a
// semantic check over the language model. Protected metric concepts never
// merge automatically, regardless of string similarity.
package resolution

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// orgSuffixes are corporate designators stripped during normalization so
// "ABC Corp" and "ABC Corporation" compare equal.
var orgSuffixes = []string{
	"corporation", "incorporated", "limited", "company",
	"corp", "inc", "ltd", "llc", "plc", "gmbh", "co",
}

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// NormalizeName lowercases, strips punctuation, removes corporate suffixes
// for organizations, and removes parenthetical role qualifiers for people.
func NormalizeName(name string, entityType types.EntityType) string {
	s := strings.ToLower(strings.TrimSpace(name))

	if entityType == types.EntityTypePerson {
		s = parenthetical.ReplaceAllString(s, "")
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	tokens := strings.Fields(b.String())

	if entityType == types.EntityTypeCompany {
		for len(tokens) > 1 && isOrgSuffix(tokens[len(tokens)-1]) {
			tokens = tokens[:len(tokens)-1]
		}
	}
	return strings.Join(tokens, " ")
}

func isOrgSuffix(token string) bool {
	for _, suffix := range orgSuffixes {
		if token == suffix {
			return true
		}
	}
	return false
}

// MatchKind classifies the outcome of the deterministic pre-filter.
type MatchKind string

const (
	// MatchExact means the normalized forms are identical.
	MatchExact MatchKind = "exact"
	// MatchContains means one normalized form contains the other.
	MatchContains MatchKind = "contains"
	// MatchDeferred means the pre-filter could not decide.
	MatchDeferred MatchKind = "deferred"
)

// Pre-filter merge confidences.
const (
	ExactMatchConfidence    = 0.95
	ContainsMatchConfidence = 0.80
)

// Prefilter compares two entity names deterministically. Identical normalized
// forms merge at 0.95, prefix or substring containment merges at 0.80, and
// everything else is deferred to the semantic check.
func Prefilter(a, b string, entityType types.EntityType) (MatchKind, float64) {
	na := NormalizeName(a, entityType)
	nb := NormalizeName(b, entityType)
	if na == "" || nb == "" {
		return MatchDeferred, 0
	}
	if na == nb {
		return MatchExact, ExactMatchConfidence
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return MatchContains, ContainsMatchConfidence
	}
	return MatchDeferred, 0
}
