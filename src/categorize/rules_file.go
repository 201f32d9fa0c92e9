package categorize

import (
	"fmt"
	"strings"
	"time"

	"tallyhub-server/src/models"

	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []struct {
		Keyword  string `yaml:"keyword"`
		Category string `yaml:"category"`
	} `yaml:"rules"`
}

// LoadRulesYAML reads offline keyword rules. File order stands in for creation order.
func LoadRulesYAML(data []byte) ([]models.TransactionRule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	base := time.Unix(0, 0).UTC()
	seen := make(map[string]bool)
	rules := make([]models.TransactionRule, 0, len(f.Rules))
	for i, r := range f.Rules {
		kw := strings.ToUpper(strings.TrimSpace(r.Keyword))
		if kw == "" {
			return nil, fmt.Errorf("rule %d: keyword is required", i+1)
		}
		if seen[kw] {
			return nil, fmt.Errorf("rule %d: duplicate keyword %q", i+1, kw)
		}
		seen[kw] = true
		c, err := models.ParseCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, models.TransactionRule{
			Keyword:   kw,
			Category:  c,
			Template:  models.TemplateFor(c),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return rules, nil
}
