// Package bankcsv turns bank CSV exports into normalized expense transactions.
package bankcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"tallyhub-server/src/models"

	"github.com/shopspring/decimal"
)

// Result is the outcome of parsing one file. Row problems never abort the parse; they
// are collected in Errors, while rows that are deliberately ignored only count in Skipped.
type Result struct {
	Success      bool                       `json:"success"`
	Transactions []models.ParsedTransaction `json:"transactions"`
	Errors       []string                   `json:"errors"`
	Skipped      int                        `json:"skipped"`
}

type outcomeKind int

const (
	rowAccepted outcomeKind = iota
	rowSkipped
	rowRejected
)

type rowOutcome struct {
	kind   outcomeKind
	txn    models.ParsedTransaction
	reason string
}

func accepted(t models.ParsedTransaction) rowOutcome { return rowOutcome{kind: rowAccepted, txn: t} }
func skipped(reason string) rowOutcome               { return rowOutcome{kind: rowSkipped, reason: reason} }
func rejected(reason string) rowOutcome              { return rowOutcome{kind: rowRejected, reason: reason} }

var (
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDate       = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
	errNoHeader  = "File is empty or has no header row"
	errNoRecords = "File has a header but no transaction rows"
)

// Parse reads the whole export. The first record is the header.
func Parse(text string) Result {
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil || isBlank(header) {
		return failed(errNoHeader)
	}

	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return failed(missing...)
	}

	res := Result{Transactions: []models.ParsedTransaction{}, Errors: []string{}}
	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				res.Errors = append(res.Errors, fmt.Sprintf("Read error: %v", err))
				break
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: %v", perr.StartLine, perr.Err))
			rows++
			continue
		}
		if isBlank(record) {
			continue
		}
		rows++
		line, _ := r.FieldPos(0)

		out := parseRow(record, cols)
		switch out.kind {
		case rowAccepted:
			res.Transactions = append(res.Transactions, out.txn)
		case rowSkipped:
			res.Skipped++
		case rowRejected:
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: %s", line, out.reason))
		}
	}

	if rows == 0 {
		return failed(errNoRecords)
	}
	res.Success = len(res.Errors) == 0
	return res
}

func failed(reasons ...string) Result {
	return Result{
		Success:      false,
		Transactions: []models.ParsedTransaction{},
		Errors:       reasons,
	}
}

func parseRow(record []string, cols columnMap) rowOutcome {
	if len(record) < cols.width() {
		return rejected(fmt.Sprintf("insufficient columns (got %d, need %d)", len(record), cols.width()))
	}

	merchant := cols.value(record, fieldMerchant)
	memo := cols.value(record, fieldMemo)
	if phrase, ok := matchSkipPhrase(merchant, memo); ok {
		return skipped("skip phrase " + phrase)
	}
	if merchant == "" {
		return skipped("empty merchant")
	}

	rawDate := cols.value(record, fieldDate)
	date, ok := normalizeDate(rawDate)
	if !ok {
		return rejected(fmt.Sprintf("Invalid date %q", rawDate))
	}

	rawAmount := cols.value(record, fieldAmount)
	if rawAmount == "" {
		return skipped("no amount")
	}
	amount, err := normalizeAmount(rawAmount)
	if err != nil {
		return rejected(fmt.Sprintf("Invalid amount %q", rawAmount))
	}
	if !amount.IsPositive() {
		return skipped("not an expense")
	}

	return accepted(models.ParsedTransaction{
		Date:         date,
		Merchant:     merchant,
		Amount:       amount,
		BankCategory: cols.value(record, fieldCategory),
		Description:  memo,
		Raw:          strings.Join(record, ","),
	})
}

func matchSkipPhrase(fields ...string) (string, bool) {
	for _, f := range fields {
		if f == "" {
			continue
		}
		for _, p := range skipPhrases {
			if strings.Contains(f, p) {
				return p, true
			}
		}
	}
	return "", false
}

// IsISODate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsISODate(s string) bool {
	if !isoDate.MatchString(s) {
		return false
	}
	_, ok := normalizeDate(s)
	return ok
}

// normalizeDate accepts YYYY-MM-DD or M/D/YYYY and returns YYYY-MM-DD.
func normalizeDate(s string) (string, bool) {
	switch {
	case isoDate.MatchString(s):
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "", false
		}
		return s, true
	case usDate.MatchString(s):
		t, err := time.Parse("1/2/2006", s)
		if err != nil {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func normalizeAmount(s string) (decimal.Decimal, error) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", s)
	}
	return decimal.NewFromString(cleaned)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
