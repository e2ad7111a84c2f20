package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// JoinInt64 encodes values as a callback payload using sep.
func JoinInt64(sep string, values ...int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, sep)
}

// SplitTwoInt64 parses a payload like "123|456" into two int64 values.
func SplitTwoInt64(payload, sep string) (int64, int64, error) {
	first, second, ok := strings.Cut(payload, sep)
	if !ok || strings.Contains(second, sep) {
		return 0, 0, strconv.ErrSyntax
	}
	a, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseInt(second, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// PayloadTwoInt64 parses the current callback payload with SplitTwoInt64.
func PayloadTwoInt64(c tele.Context, sep string) (int64, int64, error) {
	return SplitTwoInt64(CallbackPayload(c), sep)
}
