package post

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDescriptionTooShort = errors.New("description too short")
	ErrDescriptionTooLong  = errors.New("description too long")
)

// DescriptionError reports a word count outside the accepted range.
type DescriptionError struct {
	Words, Min, Max int
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("description has %d words, want %d..%d", e.Words, e.Min, e.Max)
}

// Is matches ErrDescriptionTooShort or ErrDescriptionTooLong.
func (e *DescriptionError) Is(target error) bool {
	switch target {
	case ErrDescriptionTooShort:
		return e.Words < e.Min
	case ErrDescriptionTooLong:
		return e.Max > 0 && e.Words > e.Max
	}
	return false
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ValidateDescription checks the word count against [min, max]. max <= 0 disables the upper bound.
func ValidateDescription(text string, min, max int) error {
	n := CountWords(text)
	if n < min || (max > 0 && n > max) || n == 0 {
		return &DescriptionError{Words: n, Min: min, Max: max}
	}
	return nil
}
