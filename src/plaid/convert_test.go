package plaid

import (
	"testing"

	"tallyhub-server/src/categorize"
	"tallyhub-server/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankCategory(t *testing.T) {
	tests := []struct {
		primary, detailed, want string
	}{
		{"FOOD_AND_DRINK", "FOOD_AND_DRINK_GROCERIES", "Groceries"},
		{"FOOD_AND_DRINK", "FOOD_AND_DRINK_RESTAURANT", ""},
		{"RENT_AND_UTILITIES", "RENT_AND_UTILITIES_RENT", "Rent"},
		{"RENT_AND_UTILITIES", "RENT_AND_UTILITIES_GAS_AND_ELECTRICITY", "Bills & Utilities"},
		{"TRANSPORTATION", "TRANSPORTATION_GAS", "Auto & Transport"},
		{"GENERAL_MERCHANDISE", "GENERAL_MERCHANDISE_SUPERSTORES", "Shopping"},
		{"ENTERTAINMENT", "ENTERTAINMENT_TV_AND_MOVIES", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BankCategory(tt.primary, tt.detailed), tt.detailed)
	}
}

func TestBankCategory_KnownToEngine(t *testing.T) {
	for _, label := range []string{"Groceries", "Rent", "Bills & Utilities", "Auto & Transport", "Shopping"} {
		_, ok := categorize.BankCategory(label)
		assert.True(t, ok, label)
	}
}

func TestConvert(t *testing.T) {
	res := convert([]synced{
		{ID: "a", Date: "2025-10-09", Name: "ALDI 70012 BATAVIA", MerchantName: "Aldi", Amount: 31.98, Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_GROCERIES"},
		{ID: "b", Date: "2025-10-10", Name: "SHELL OIL 5741", Amount: 40.005, Primary: "TRANSPORTATION", Detailed: "TRANSPORTATION_GAS"},
		{ID: "c", Date: "2025-10-10", Name: "PAYROLL", Amount: -2500, Primary: "INCOME"},
		{ID: "d", Date: "2025-10-11", Name: "To savings", Amount: 500, Primary: "TRANSFER_OUT"},
		{ID: "e", Date: "2025-10-11", Name: "Refund", Amount: -12.50, Primary: "GENERAL_MERCHANDISE"},
		{ID: "f", Date: "2025-10-12", Name: "Pending store", Amount: 9.99, Pending: true},
		{ID: "g", Date: "10/12/2025", Name: "Odd date", Amount: 5},
	})

	require.Len(t, res.Transactions, 2)
	assert.Equal(t, 4, res.Skipped)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Invalid date")

	aldi := res.Transactions[0]
	assert.Equal(t, "Aldi", aldi.Merchant)
	assert.Equal(t, "Groceries", aldi.BankCategory)
	assert.Equal(t, "31.98", aldi.Amount.StringFixed(2))
	assert.Equal(t, "ALDI 70012 BATAVIA", aldi.Description)

	shell := res.Transactions[1]
	assert.Equal(t, "SHELL OIL 5741", shell.Merchant)
	assert.Equal(t, "Auto & Transport", shell.BankCategory)

	m := categorize.NewEngine(nil).Categorize(shell)
	assert.Equal(t, models.CategoryAuto, m.Category)
}
