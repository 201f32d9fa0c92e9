package util

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxKeywordLength = 64

var keywordPattern = regexp.MustCompile(`^[\p{L}\p{N}&'.*#/\-_@+:!, ]+$`)

// ValidateKeyword checks a rule keyword after trimming and upper-casing.
func ValidateKeyword(keyword string) error {
	kw := strings.ToUpper(strings.TrimSpace(keyword))
	if kw == "" {
		return fmt.Errorf("keyword is required")
	}
	if len(kw) > MaxKeywordLength {
		return fmt.Errorf("keyword must be at most %d characters", MaxKeywordLength)
	}
	if !keywordPattern.MatchString(kw) {
		return fmt.Errorf("keyword %q contains unsupported characters", keyword)
	}
	return nil
}
