package transaction

import "strings"

// Categorizer derives a local category for a provider-sourced transaction.
// The sync engine treats it as an external collaborator.
type Categorizer interface {
	Categorize(description string, providerCategory *string) string
}

// KeywordCategorizer maps descriptions to categories by keyword match,
// falling back to the provider's own category when one is present.
type KeywordCategorizer struct{}

func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{}
}

// Order matters: earlier rules win, so specific merchants come before
// generic terms.
var keywordRules = []struct {
	keyword  string
	category string
}{
	{"uber", "Transport"},
	{"lyft", "Transport"},
	{"shell", "Transport"},
	{"parking", "Transport"},
	{"netflix", "Entertainment"},
	{"spotify", "Entertainment"},
	{"cinema", "Entertainment"},
	{"steam", "Entertainment"},
	{"grocery", "Groceries"},
	{"market", "Groceries"},
	{"supermarket", "Groceries"},
	{"restaurant", "Dining"},
	{"cafe", "Dining"},
	{"coffee", "Dining"},
	{"pizza", "Dining"},
	{"pharmacy", "Health"},
	{"clinic", "Health"},
	{"hospital", "Health"},
	{"rent", "Housing"},
	{"mortgage", "Housing"},
	{"electric", "Utilities"},
	{"water", "Utilities"},
	{"internet", "Utilities"},
	{"phone", "Utilities"},
	{"payroll", "Income"},
	{"salary", "Income"},
	{"deposit", "Income"},
	{"transfer", "Transfers"},
	{"atm", "Cash"},
	{"withdrawal", "Cash"},
}

// Categorize returns the first keyword match, then the provider category,
// then "Uncategorized".
func (c *KeywordCategorizer) Categorize(description string, providerCategory *string) string {
	desc := strings.ToLower(description)
	for _, rule := range keywordRules {
		if strings.Contains(desc, rule.keyword) {
			return rule.category
		}
	}
	if providerCategory != nil && *providerCategory != "" {
		return *providerCategory
	}
	return "Uncategorized"
}
