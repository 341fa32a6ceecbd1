package transaction

import "testing"

func TestCategorize(t *testing.T) {
	provided := "Provider Category"
	empty := ""

	tests := []struct {
		name        string
		description string
		provider    *string
		want        string
	}{
		{"keyword match", "UBER *TRIP 12345", nil, "Transport"},
		{"case insensitive", "Netflix.com", nil, "Entertainment"},
		{"keyword beats provider category", "Corner cafe", &provided, "Dining"},
		{"provider fallback", "ACME WIDGETS", &provided, "Provider Category"},
		{"empty provider category ignored", "ACME WIDGETS", &empty, "Uncategorized"},
		{"no match", "XYZ 123", nil, "Uncategorized"},
		{"income keyword", "ACH PAYROLL COMPANY INC", nil, "Income"},
		{"housing keyword", "Monthly rent payment", nil, "Housing"},
	}

	c := NewKeywordCategorizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Categorize(tt.description, tt.provider); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}
