package bankcsv

import (
	"fmt"
	"strings"
)

type field string

const (
	fieldDate     field = "date"
	fieldMerchant field = "merchant"
	fieldAmount   field = "amount"
	fieldCategory field = "category"
	fieldMemo     field = "memo"
)

// Header names are matched exactly; the first alias present in the header wins.
var aliases = map[field][]string{
	fieldDate:     {"Date", "Transaction Date", "Posted Date"},
	fieldMerchant: {"Name", "Merchant", "Payee", "Description"},
	fieldAmount:   {"Amount", "Debit", "Credit", "Transaction Amount"},
	fieldCategory: {"Category", "Bank Category", "Type"},
	fieldMemo:     {"Description", "Memo", "Notes"},
}

var requiredFields = []field{fieldDate, fieldMerchant, fieldAmount}

// skipPhrases mark transfers and card payments that are not spending.
var skipPhrases = []string{
	"Savings Transfer",
	"Internal Transfer",
	"Loan Payment",
	"Payment Thank You",
}

// columnMap holds the resolved column index per field, -1 when absent.
type columnMap map[field]int

func resolveColumns(header []string) (columnMap, []string) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	cols := columnMap{}
	for f, names := range aliases {
		cols[f] = -1
		for _, n := range names {
			if i, ok := index[n]; ok {
				cols[f] = i
				break
			}
		}
	}

	var missing []string
	for _, f := range requiredFields {
		if cols[f] < 0 {
			missing = append(missing, fmt.Sprintf("Missing required column: %s (expected one of %s)",
				f, strings.Join(aliases[f], ", ")))
		}
	}
	return cols, missing
}

// width is the number of fields a row needs to carry every required column.
func (c columnMap) width() int {
	w := 0
	for _, f := range requiredFields {
		if c[f]+1 > w {
			w = c[f] + 1
		}
	}
	return w
}

func (c columnMap) value(record []string, f field) string {
	i := c[f]
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
