package logger

import (
	"strings"
	"time"
)

// Outcome maps err onto the outcome vocabulary: "ok" or "fail".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "fail"
}

// Took is the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether some were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	n := len(values)
	if limit < n {
		n = max(limit, 0)
	}
	return strings.Join(values[:n], ", "), n < len(values)
}
