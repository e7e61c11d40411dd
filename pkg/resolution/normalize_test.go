package resolution

import (
	"testing"

	"github.com/dealgraph/dealgraph/pkg/types"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		entityType types.EntityType
		want       string
	}{
		{"lowercase", "Acme", types.EntityTypeCompany, "acme"},
		{"strips corp suffix", "ABC Corp", types.EntityTypeCompany, "abc"},
		{"strips corporation suffix", "ABC Corporation", types.EntityTypeCompany, "abc"},
		{"strips stacked suffixes", "ABC Holdings Co Ltd", types.EntityTypeCompany, "abc holdings"},
		{"strips punctuation", "A.B.C., Inc.", types.EntityTypeCompany, "abc"},
		{"keeps suffix-only name", "Corp", types.EntityTypeCompany, "corp"},
		{"person parenthetical role", "Jane Smith (CEO)", types.EntityTypePerson, "jane smith"},
		{"person keeps plain name", "Jane Smith", types.EntityTypePerson, "jane smith"},
		{"metric untouched by org rules", "Net Revenue", types.EntityTypeFinancialMetric, "net revenue"},
		{"collapses whitespace", "  ABC   Corp  ", types.EntityTypeCompany, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input, tt.entityType)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrefilter(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		entityType types.EntityType
		wantKind   MatchKind
		wantConf   float64
	}{
		{"identical after normalization", "ABC Corp", "ABC Corporation", types.EntityTypeCompany, MatchExact, 0.95},
		{"case insensitive", "acme", "ACME", types.EntityTypeCompany, MatchExact, 0.95},
		{"substring containment", "ABC", "ABC Holdings", types.EntityTypeCompany, MatchContains, 0.80},
		{"unrelated names defer", "Acme", "Globex", types.EntityTypeCompany, MatchDeferred, 0},
		{"role qualified person matches", "Jane Smith (CEO)", "Jane Smith", types.EntityTypePerson, MatchExact, 0.95},
		{"metric containment still flagged by prefilter", "Revenue", "Net Revenue", types.EntityTypeFinancialMetric, MatchContains, 0.80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, conf := Prefilter(tt.a, tt.b, tt.entityType)
			if kind != tt.wantKind || conf != tt.wantConf {
				t.Errorf("Prefilter(%q, %q) = (%v, %v), want (%v, %v)",
					tt.a, tt.b, kind, conf, tt.wantKind, tt.wantConf)
			}
		})
	}
}

func TestIsProtectedName(t *testing.T) {
	protected := []string{"Revenue", "Net Revenue", "EBITDA Margin", "gross margin", "Q2 EBITDA", "Free Cash Flow"}
	for _, name := range protected {
		if !IsProtectedName(name) {
			t.Errorf("expected %q to be protected", name)
		}
	}
	unprotected := []string{"Acme Corp", "Jane Smith", "Data Center Lease"}
	for _, name := range unprotected {
		if IsProtectedName(name) {
			t.Errorf("expected %q not to be protected", name)
		}
	}
}
