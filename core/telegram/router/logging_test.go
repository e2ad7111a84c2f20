package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "stage changed" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", codedErr{}), "STAGE_CHANGED"},
		{fmt.Errorf("send: %w", &tele.Error{Code: 400, Description: "message to edit not found"}), "TG_MESSAGE_TO_EDIT_NOT_FOUND"},
		{fmt.Errorf("outer: %w", &plainErr{}), "PLAINERR"},
		{errors.New("x"), "ERRORSTRING"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Errorf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"":             "unknown",
		"/Start":       "start",
		" sell books ": "sell_books",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}
