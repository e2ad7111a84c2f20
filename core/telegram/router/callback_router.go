package router

import (
	"log/slog"
	"time"

	tg "github.com/MyhlovetsVladyslav/bookbot/core/telegram"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/callbacks"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	// KeepSpinner leaves the callback unanswered so the handler can answer with its own text.
	KeepSpinner bool
}

// CallbackRoute returns a handler that routes every callback through the registry by button unique.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		if !opts.KeepSpinner {
			_ = c.Respond()
		}

		cbHandler, ok := reg.GetCallback(key)
		if !ok {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("cause", "not_found"))
			return handleWithSummary(c, name, start, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
