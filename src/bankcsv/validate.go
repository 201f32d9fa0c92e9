package bankcsv

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest upload accepted for parsing.
const MaxFileSize = 10 << 20

var (
	ErrNotCSV       = errors.New("file must have a .csv extension")
	ErrFileTooLarge = fmt.Errorf("file exceeds the %d MB limit", MaxFileSize>>20)
	ErrEmptyFile    = errors.New("file is empty")
)

// ValidateUpload runs the cheap checks that must pass before any parsing starts.
func ValidateUpload(filename string, size int64) error {
	if strings.ToLower(filepath.Ext(filename)) != ".csv" {
		return ErrNotCSV
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	return nil
}
