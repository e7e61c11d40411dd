package resolution

import (
	"strings"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// protectedMetrics are metric concepts that must never merge with a
// similarly named concept. "Revenue" and "Net Revenue" are distinct facts in
// a diligence record even though one contains the other.
var protectedMetrics = map[string]bool{
	"revenue":               true,
	"net revenue":           true,
	"gross revenue":         true,
	"recurring revenue":     true,
	"arr":                   true,
	"mrr":                   true,
	"gross margin":          true,
	"net margin":            true,
	"operating margin":      true,
	"ebitda":                true,
	"ebitda margin":         true,
	"adjusted ebitda":       true,
	"net income":            true,
	"operating income":      true,
	"gross profit":          true,
	"net profit":            true,
	"free cash flow":        true,
	"operating cash flow":   true,
	"cash burn":             true,
	"burn rate":             true,
	"churn":                 true,
	"churn rate":            true,
	"cac":                   true,
	"ltv":                   true,
	"capex":                 true,
	"opex":                  true,
	"working capital":       true,
	"deferred revenue":      true,
	"bookings":              true,
	"billings":              true,
	"backlog":               true,
	"run rate":              true,
	"headcount":             true,
	"retention rate":        true,
	"net revenue retention": true,
}

// IsProtected reports whether the entity may never be auto-merged. All
// FinancialMetric entities are protected, as is any entity whose normalized
// name matches a known metric concept.
func IsProtected(node *types.Node) bool {
	if node == nil {
		return false
	}
	if node.EntityType == types.EntityTypeFinancialMetric {
		return true
	}
	return IsProtectedName(node.Name)
}

// IsProtectedName reports whether the name denotes a protected metric.
func IsProtectedName(name string) bool {
	n := NormalizeName(name, types.EntityTypeFinancialMetric)
	if protectedMetrics[n] {
		return true
	}
	// "Q2 EBITDA margin" and similar period-qualified metric names are still
	// metric names.
	for metric := range protectedMetrics {
		if strings.HasSuffix(n, " "+metric) {
			return true
		}
	}
	return false
}
