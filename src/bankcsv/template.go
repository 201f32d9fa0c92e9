package bankcsv

import (
	"bytes"
	"encoding/csv"
)

const TemplateFilename = "transactions-template.csv"

var templateRows = [][]string{
	{"Date", "Description", "Amount", "Category"},
	{"2025-10-09", "ALDI 70012", "31.98", "Groceries"},
	{"2025-10-08", "SHELL OIL 5741", "45.20", "Auto & Transport"},
	{"10/05/2025", "CITY POWER & LIGHT", "112.47", "Bills & Utilities"},
	{"2025-10-01", "OAK STREET APARTMENTS", "1450.00", "Rent"},
	{"2025-10-03", "Savings Transfer", "-500.00", ""},
}

// TemplateCSV renders the starter file offered for download. It parses cleanly with Parse.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll(templateRows)
	return buf.Bytes()
}
