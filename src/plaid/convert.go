package plaid

import (
	"fmt"
	"strings"

	"tallyhub-server/src/bankcsv"
	"tallyhub-server/src/models"

	"github.com/shopspring/decimal"
)

// synced is the part of a Plaid transaction the import pipeline reads.
type synced struct {
	ID           string
	Date         string
	Name         string
	MerchantName string
	Amount       float64
	Pending      bool
	Primary      string
	Detailed     string
}

// Primary personal finance categories that are money movement rather than spend.
var ignoredPrimary = map[string]bool{
	"INCOME":        true,
	"TRANSFER_IN":   true,
	"TRANSFER_OUT":  true,
	"LOAN_PAYMENTS": true,
}

// BankCategory translates a personal finance category into the bank labels the
// categorization engine knows. Unknown categories translate to "".
func BankCategory(primary, detailed string) string {
	switch {
	case detailed == "FOOD_AND_DRINK_GROCERIES":
		return "Groceries"
	case detailed == "RENT_AND_UTILITIES_RENT":
		return "Rent"
	case primary == "RENT_AND_UTILITIES":
		return "Bills & Utilities"
	case primary == "TRANSPORTATION":
		return "Auto & Transport"
	case primary == "GENERAL_MERCHANDISE":
		return "Shopping"
	}
	return ""
}

// convert applies the same acceptance rules as the CSV parser: pending entries,
// transfers and income, and non-positive amounts are skipped.
func convert(txns []synced) bankcsv.Result {
	res := bankcsv.Result{Transactions: []models.ParsedTransaction{}, Errors: []string{}}
	for _, t := range txns {
		if t.Pending || ignoredPrimary[t.Primary] {
			res.Skipped++
			continue
		}
		merchant := strings.TrimSpace(t.MerchantName)
		if merchant == "" {
			merchant = strings.TrimSpace(t.Name)
		}
		if merchant == "" {
			res.Skipped++
			continue
		}
		amount := decimal.NewFromFloat(t.Amount).Round(2)
		if !amount.IsPositive() {
			res.Skipped++
			continue
		}
		if !bankcsv.IsISODate(t.Date) {
			res.Errors = append(res.Errors, fmt.Sprintf("Transaction %s: Invalid date %q", t.ID, t.Date))
			continue
		}
		res.Transactions = append(res.Transactions, models.ParsedTransaction{
			Date:         t.Date,
			Merchant:     merchant,
			Amount:       amount,
			BankCategory: BankCategory(t.Primary, t.Detailed),
			Description:  t.Name,
		})
	}
	res.Success = len(res.Errors) == 0
	return res
}
