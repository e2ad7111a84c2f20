package middleware

import (
	tghelpers "github.com/MyhlovetsVladyslav/bookbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MessageMetricsMiddleware installs per-update send counters read back by the router summary.
// Outbound adapters report through tghelpers.CountSent with the update context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.TrackSends(c)
		return next(c)
	}
}

// GetCounters reads message count and keyboard presence flags for the update.
func GetCounters(c tele.Context) (int, bool) {
	return tghelpers.Counters(c)
}
