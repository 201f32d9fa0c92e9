package categorize

import (
	"testing"
	"time"

	"tallyhub-server/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func rule(keyword string, c models.Category, age time.Duration) models.TransactionRule {
	return models.TransactionRule{
		ID:        uuid.New(),
		Keyword:   keyword,
		Category:  c,
		Template:  models.TemplateFor(c),
		CreatedAt: epoch.Add(age),
	}
}

func txn(merchant, bank string) models.ParsedTransaction {
	return models.ParsedTransaction{
		Date:         "2025-10-09",
		Merchant:     merchant,
		Amount:       decimal.RequireFromString("10.00"),
		BankCategory: bank,
	}
}

func TestCategorize_BankTable(t *testing.T) {
	e := NewEngine(nil)

	m := e.Categorize(txn("ALDI 70012", "Groceries"))
	assert.Equal(t, models.CategoryGrocery, m.Category)
	assert.Equal(t, models.TemplateMarket, m.Template)
	assert.Equal(t, SourceBank, m.Source)

	tests := map[string]models.Category{
		"Shopping":          models.CategoryMiscShop,
		"Supplements":       models.CategorySupplements,
		"Auto & Transport":  models.CategoryAuto,
		"Rent":              models.CategoryRent,
		"Bills & Utilities": models.CategoryBills,
		"Invests":           models.CategoryInvestment,
		"Investment":        models.CategoryInvestment,
		"Education":         models.CategoryMiscShop,
		"Software & Tech":   models.CategoryMiscShop,
	}
	for bank, want := range tests {
		assert.Equal(t, want, e.Categorize(txn("X", bank)).Category, bank)
	}
}

func TestCategorize_BankTableIsExact(t *testing.T) {
	e := NewEngine(nil)

	for _, bank := range []string{"groceries", "Groceries ", "Travel", ""} {
		m := e.Categorize(txn("X", bank))
		assert.Equal(t, SourceDefault, m.Source, bank)
		assert.Equal(t, models.CategoryMiscShop, m.Category)
		assert.Equal(t, models.TemplateChronicle, m.Template)
	}
}

func TestCategorize_RuleBeatsBankCategory(t *testing.T) {
	e := NewEngine([]models.TransactionRule{rule("KROGER", models.CategoryGrocery, 0)})

	m := e.Categorize(txn("KROGER 8901", "Rent"))
	assert.Equal(t, models.CategoryGrocery, m.Category)
	assert.Equal(t, SourceRule, m.Source)
	assert.Equal(t, "KROGER", m.Keyword)
}

func TestCategorize_RuleIsCaseInsensitive(t *testing.T) {
	e := NewEngine([]models.TransactionRule{rule("gnc", models.CategorySupplements, 0)})

	assert.Equal(t, models.CategorySupplements, e.Categorize(txn("Gnc Live Well #12", "")).Category)
}

func TestCategorize_LongestKeywordWins(t *testing.T) {
	rules := []models.TransactionRule{
		rule("AMAZON", models.CategoryMiscShop, 0),
		rule("AMAZON FRESH", models.CategoryGrocery, time.Hour),
	}

	for _, order := range [][]models.TransactionRule{rules, {rules[1], rules[0]}} {
		e := NewEngine(order)
		assert.Equal(t, models.CategoryGrocery, e.Categorize(txn("AMAZON FRESH 123", "")).Category)
		assert.Equal(t, models.CategoryMiscShop, e.Categorize(txn("AMAZON MKTPL", "")).Category)
	}
}

func TestCategorize_EqualLengthPrefersOlderRule(t *testing.T) {
	older := rule("SHELL", models.CategoryAuto, 0)
	newer := rule("OIL 5", models.CategoryHomeGarden, time.Minute)

	for _, order := range [][]models.TransactionRule{{older, newer}, {newer, older}} {
		e := NewEngine(order)
		m := e.Categorize(txn("SHELL OIL 5741", ""))
		assert.Equal(t, models.CategoryAuto, m.Category)
		assert.Equal(t, "SHELL", m.Keyword)
	}
}

func TestNewEngine_IgnoresUnusableRules(t *testing.T) {
	e := NewEngine([]models.TransactionRule{
		rule("  ", models.CategoryGrocery, 0),
		rule("TARGET", models.Category("travel"), 0),
	})
	assert.Empty(t, e.Rules())
	assert.Equal(t, SourceDefault, e.Categorize(txn("TARGET", "")).Source)
}

func TestMapAll_TemplateFollowsCategory(t *testing.T) {
	e := NewEngine([]models.TransactionRule{rule("RENTCO", models.CategoryRent, 0)})
	mapped := e.MapAll([]models.ParsedTransaction{
		txn("RENTCO LLC", ""),
		txn("VANGUARD", "Investment"),
		txn("UNKNOWN", ""),
	})

	require.Len(t, mapped, 3)
	for _, m := range mapped {
		assert.Equal(t, models.TemplateFor(m.Category), m.Template)
		assert.False(t, m.SaveRule)
		assert.Nil(t, m.Splits)
	}
	assert.Equal(t, models.CategoryRent, mapped[0].Category)
	assert.Equal(t, models.CategoryInvestment, mapped[1].Category)
	assert.Equal(t, models.CategoryMiscShop, mapped[2].Category)
}

func TestSummarize(t *testing.T) {
	e := NewEngine([]models.TransactionRule{rule("ALDI", models.CategoryGrocery, 0)})
	txns := []models.ParsedTransaction{
		txn("ALDI 70012", "Groceries"),
		txn("COSTCO", "Groceries"),
		txn("LOCAL SHOP", ""),
		txn("MYSTERY", "Unknown"),
	}

	s := Summarize(e, txns)
	assert.Equal(t, Stats{Total: 4, MatchedByRule: 1, AutoMapped: 1, NeedsReview: 2}, s)
	assert.Equal(t, s, Summarize(e, txns))
}

func TestLoadBankCategories_Validation(t *testing.T) {
	_, err := loadBankCategories([]byte("mappings:\n  - bank: Travel\n    category: travel\n"))
	assert.Error(t, err)

	_, err = loadBankCategories([]byte("mappings:\n  - bank: Rent\n    category: rent\n  - bank: Rent\n    category: bills\n"))
	assert.Error(t, err)

	_, err = loadBankCategories([]byte("mappings: ["))
	assert.Error(t, err)

	table, err := loadBankCategories(embeddedBankCategories)
	require.NoError(t, err)
	assert.Len(t, table, 10)
}
