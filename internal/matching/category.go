package matching

import (
	"strings"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type categoryRule struct {
	category models.Category
	keywords []string
}

// categoryRules is evaluated top to bottom and the first rule with any keyword
// contained in the lowercased question wins. Matching is plain substring, so
// "doing" hits the DOI rule.
var categoryRules = []categoryRule{
	{
		category: models.CategoryDOI,
		keywords: []string{"doi", "crossref", "digital object identifier", "metadata deposit", "reference linking"},
	},
	{
		category: models.CategoryAccess,
		keywords: []string{"access", "login", "log in", "sign in", "password", "account", "permission", "subscription", "locked out"},
	},
	{
		category: models.CategoryHosting,
		keywords: []string{"hosting", "host", "server", "domain", "ssl", "dns", "website", "upload", "downtime"},
	},
}

// DetectCategory is a coarse keyword heuristic, not a classifier.
func DetectCategory(question string) models.Category {
	lower := strings.ToLower(question)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.category
			}
		}
	}
	return models.CategoryUnknown
}
