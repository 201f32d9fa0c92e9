// Package categorize assigns categories to parsed transactions: user keyword rules first,
// then the built-in bank category table, then the default category.
package categorize

import (
	"sort"
	"strings"

	"tallyhub-server/src/models"
)

type Source string

const (
	SourceRule    Source = "rule"
	SourceBank    Source = "bank"
	SourceDefault Source = "default"
)

type Match struct {
	Category models.Category `json:"category"`
	Template models.Template `json:"template"`
	Source   Source          `json:"source"`
	Keyword  string          `json:"keyword,omitempty"`
}

type Stats struct {
	Total         int `json:"total"`
	MatchedByRule int `json:"matched_by_rule"`
	AutoMapped    int `json:"auto_mapped"`
	NeedsReview   int `json:"needs_review"`
}

type compiledRule struct {
	rule    models.TransactionRule
	keyword string
}

// Engine is immutable once built and safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine orders rules so that the longest keyword wins when several match. Equal
// lengths fall back to creation time, then keyword, then id.
func NewEngine(rules []models.TransactionRule) *Engine {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToUpper(strings.TrimSpace(r.Keyword))
		if kw == "" || !r.Category.Valid() {
			continue
		}
		compiled = append(compiled, compiledRule{rule: r, keyword: kw})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		a, b := compiled[i], compiled[j]
		if len(a.keyword) != len(b.keyword) {
			return len(a.keyword) > len(b.keyword)
		}
		if !a.rule.CreatedAt.Equal(b.rule.CreatedAt) {
			return a.rule.CreatedAt.Before(b.rule.CreatedAt)
		}
		if a.keyword != b.keyword {
			return a.keyword < b.keyword
		}
		return a.rule.ID.String() < b.rule.ID.String()
	})

	return &Engine{rules: compiled}
}

// Categorize is pure: the same transaction and rules always give the same match.
func (e *Engine) Categorize(t models.ParsedTransaction) Match {
	merchant := strings.ToUpper(t.Merchant)
	for _, cr := range e.rules {
		if strings.Contains(merchant, cr.keyword) {
			return Match{
				Category: cr.rule.Category,
				Template: models.TemplateFor(cr.rule.Category),
				Source:   SourceRule,
				Keyword:  cr.rule.Keyword,
			}
		}
	}

	if c, ok := BankCategory(t.BankCategory); ok {
		return Match{Category: c, Template: models.TemplateFor(c), Source: SourceBank}
	}

	return Match{
		Category: models.DefaultCategory,
		Template: models.TemplateFor(models.DefaultCategory),
		Source:   SourceDefault,
	}
}

func (e *Engine) MapAll(txns []models.ParsedTransaction) []models.MappedTransaction {
	out := make([]models.MappedTransaction, len(txns))
	for i, t := range txns {
		m := e.Categorize(t)
		out[i] = models.MappedTransaction{ParsedTransaction: t}
		out[i].SetCategory(m.Category)
	}
	return out
}

// Summarize recomputes the feedback counters by running the precedence again.
func Summarize(e *Engine, txns []models.ParsedTransaction) Stats {
	s := Stats{Total: len(txns)}
	for _, t := range txns {
		switch e.Categorize(t).Source {
		case SourceRule:
			s.MatchedByRule++
		case SourceBank:
			s.AutoMapped++
		}
	}
	s.NeedsReview = s.Total - s.MatchedByRule - s.AutoMapped
	return s
}

// Rules returns the rules in match order.
func (e *Engine) Rules() []models.TransactionRule {
	out := make([]models.TransactionRule, len(e.rules))
	for i, cr := range e.rules {
		out[i] = cr.rule
	}
	return out
}
