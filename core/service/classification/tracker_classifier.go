// Package classification maps an email's subject and snippet to an intent tag.
package classification

import (
	"strings"

	"tracker_server/core/domain"
)

// Classifier applies a RuleSet. Safe for concurrent use.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rs *RuleSet) *Classifier {
	rules := make([]Rule, len(rs.Rules))
	copy(rules, rs.Rules)
	return &Classifier{rules: rules}
}

// Classify returns the intent of the first matching rule, or UNKNOWN.
func (c *Classifier) Classify(subject, snippet string) domain.IntentTag {
	tag, _ := c.Match(subject, snippet)
	return tag
}

// Match returns the name of the deciding rule as well, "" for UNKNOWN.
func (c *Classifier) Match(subject, snippet string) (domain.IntentTag, string) {
	text := strings.ToLower(subject + " " + snippet)

	for _, r := range c.rules {
		if containsAny(text, r.Keywords) && !containsAny(text, r.Exclude) {
			return r.Intent, r.Name
		}
	}
	return domain.IntentUnknown, ""
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
