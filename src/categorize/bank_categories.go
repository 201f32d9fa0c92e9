package categorize

import (
	_ "embed"
	"fmt"

	"tallyhub-server/src/models"

	"gopkg.in/yaml.v3"
)

//go:embed bank_categories.yaml
var embeddedBankCategories []byte

type bankMapping struct {
	Bank     string `yaml:"bank"`
	Category string `yaml:"category"`
}

type bankTable struct {
	Mappings []bankMapping `yaml:"mappings"`
}

var builtinBankCategories = mustLoadBankCategories(embeddedBankCategories)

func loadBankCategories(data []byte) (map[string]models.Category, error) {
	var table bankTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse bank category table: %w", err)
	}

	out := make(map[string]models.Category, len(table.Mappings))
	for i, m := range table.Mappings {
		if m.Bank == "" {
			return nil, fmt.Errorf("mapping %d: bank label cannot be empty", i)
		}
		c, err := models.ParseCategory(m.Category)
		if err != nil {
			return nil, fmt.Errorf("mapping %d (%s): %w", i, m.Bank, err)
		}
		if _, dup := out[m.Bank]; dup {
			return nil, fmt.Errorf("mapping %d: duplicate bank label %q", i, m.Bank)
		}
		out[m.Bank] = c
	}
	return out, nil
}

func mustLoadBankCategories(data []byte) map[string]models.Category {
	table, err := loadBankCategories(data)
	if err != nil {
		panic(fmt.Sprintf("embedded bank category table is invalid: %v", err))
	}
	return table
}

// BankCategory looks up the built-in mapping for a bank-supplied label.
func BankCategory(label string) (models.Category, bool) {
	c, ok := builtinBankCategories[label]
	return c, ok
}
