package classification

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tracker_server/core/domain"
)

//go:embed rules/default_rules.yaml
var defaultRulesYAML []byte

// Rule is one keyword category.
type Rule struct {
	Name     string           `yaml:"name"`
	Intent   domain.IntentTag `yaml:"intent"`
	Keywords []string         `yaml:"keywords"`
	// Exclude vetoes the rule when any of these also match.
	Exclude []string `yaml:"exclude"`
}

// RuleSet is the ordered rule list. Order is significant.
type RuleSet struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// DefaultRuleSet returns the embedded rules.
func DefaultRuleSet() (*RuleSet, error) {
	return ParseRuleSet(defaultRulesYAML)
}

// LoadRuleSet reads rules from path, or the embedded defaults when path is
// empty.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set %s: %w", path, err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes and validates a YAML rule document.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	if err := rs.normalize(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) normalize() error {
	if len(rs.Rules) == 0 {
		return fmt.Errorf("rule set has no rules")
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		tag, ok := domain.ParseIntentTag(string(r.Intent))
		if !ok || tag == domain.IntentUnknown {
			return fmt.Errorf("rule %q: unsupported intent %q", r.Name, r.Intent)
		}
		r.Intent = tag
		r.Keywords = lowerAll(r.Keywords)
		r.Exclude = lowerAll(r.Exclude)
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %q: no keywords", r.Name)
		}
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
