package router

import (
	"strings"
	"time"

	tg "github.com/MyhlovetsVladyslav/bookbot/core/telegram"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions holds the handlers for non-command messages.
type MessageOptions struct {
	Text     tele.HandlerFunc
	Photo    tele.HandlerFunc
	Document tele.HandlerFunc
}

// MessageRoutes builds the text, photo and document routes.
// Text matching a registered command or alias is dispatched to that command first.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		body := strings.TrimSpace(c.Text())

		if reg != nil && !strings.Contains(body, " ") {
			if key, cmd, ok := reg.LookupCommand(body); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		// Unknown slash commands must not be treated as input for the current stage.
		if strings.HasPrefix(body, "/") {
			logHandlerSummary(c, "unknown_command", start, "skip", nil)
			return nil
		}
		if opts.Text != nil {
			return handleWithSummary(c, "text", start, func() error { return opts.Text(c) })
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	routes := []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(text)),
	}}
	if opts.Photo != nil {
		photo := func(c tele.Context) error {
			return handleWithSummary(c, "photo", time.Now(), func() error { return opts.Photo(c) })
		}
		routes = append(routes, tg.Route{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photo)),
		})
	}
	if opts.Document != nil {
		doc := func(c tele.Context) error {
			return handleWithSummary(c, "document", time.Now(), func() error { return opts.Document(c) })
		}
		routes = append(routes, tg.Route{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(doc)),
		})
	}
	return routes
}
