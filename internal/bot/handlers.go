package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/callbacks"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/commands"
	tghelpers "github.com/MyhlovetsVladyslav/bookbot/core/telegram/helpers"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/flow"
	"github.com/MyhlovetsVladyslav/bookbot/internal/moderation"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"

	tele "gopkg.in/telebot.v4"
)

const (
	tooManyRequests = "Too many requests, slow down a little."
	adminOnly       = "⛔ This command is for the bot admin."
)

func (a *App) register() error {
	cmds := map[string]commands.Command{
		"/start":    {Handler: a.onStart, Description: "Open the menu"},
		"/cancel":   {Handler: a.onCancel, Description: "Cancel the listing in progress"},
		"/listings": {Handler: a.onListings, Description: "Show your listings"},
		"/sweep":    {Handler: a.onSweep, Description: "Remove expired listings now", AdminOnly: true, Hidden: true},
	}
	for name, cmd := range cmds {
		if err := a.registry.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		prompt.KeySellBooks:       a.userCallback(a.flow.SellBooks),
		prompt.KeyBackToBookCount: a.userCallback(a.flow.BackToBookCount),
		prompt.KeyBackToMenu:      a.userCallback(a.flow.BackToMenu),
		prompt.KeySearchBooks: a.userCallback(func(ctx context.Context, u flow.User, _ chat.MessageRef) error {
			return a.flow.Search(ctx, u)
		}),
		prompt.KeyFinishPhotos: a.userCallback(func(ctx context.Context, u flow.User, _ chat.MessageRef) error {
			return a.flow.FinishPhotos(ctx, u)
		}),
		prompt.KeyApprove: a.decision(moderation.Approve),
		prompt.KeyReject:  a.decision(moderation.Reject),
	}
	if a.cfg.Listing.PostVariant() == post.VariantPaid {
		for _, tier := range a.flow.Tiers() {
			key := tier.Key()
			cbs[key] = a.userCallback(func(ctx context.Context, u flow.User, origin chat.MessageRef) error {
				return a.flow.SelectTier(ctx, u, key, origin)
			})
		}
	}
	for key, h := range cbs {
		if err := a.registry.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	a.registry.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: prompt.ActionOutdated})
	})
	return nil
}

func userOf(c tele.Context) (flow.User, bool) {
	s := c.Sender()
	if s == nil {
		return flow.User{}, false
	}
	return flow.User{ID: s.ID, Username: s.Username}, true
}

func originOf(c tele.Context) chat.MessageRef {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return chat.MessageRef{}
	}
	return chat.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
}

// private reports whether the update comes from a one-to-one chat.
func private(c tele.Context) bool {
	ch := c.Chat()
	return ch != nil && ch.Type == tele.ChatPrivate
}

func (a *App) onStart(c tele.Context) error {
	u, ok := userOf(c)
	if !ok || !private(c) {
		return nil
	}
	return a.flow.Start(tghelpers.BuildContext(c), u)
}

func (a *App) onCancel(c tele.Context) error {
	u, ok := userOf(c)
	if !ok || !private(c) {
		return nil
	}
	return a.flow.Cancel(tghelpers.BuildContext(c), u)
}

func (a *App) onListings(c tele.Context) error {
	u, ok := userOf(c)
	if !ok || !private(c) {
		return nil
	}
	return a.flow.Listings(tghelpers.BuildContext(c), u)
}

func (a *App) onSweep(c tele.Context) error {
	res, err := a.sweeper.RunOnce(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf("🧹 Removed %d expired listing(s), notified %d.", res.Expired, res.Notified))
}

func (a *App) onText(c tele.Context) error {
	u, ok := userOf(c)
	if !ok || !private(c) {
		return nil
	}
	return a.flow.HandleText(tghelpers.BuildContext(c), u, c.Text())
}

func (a *App) onPhoto(c tele.Context) error {
	u, ok := userOf(c)
	msg := c.Message()
	if !ok || !private(c) || msg == nil || msg.Photo == nil {
		return nil
	}
	return a.flow.HandlePhoto(tghelpers.BuildContext(c), u, flow.Photo{
		FileID:  msg.Photo.FileID,
		GroupID: msg.AlbumID,
	})
}

// userCallback answers the callback and runs fn for its sender.
func (a *App) userCallback(fn func(ctx context.Context, u flow.User, origin chat.MessageRef) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond()
		u, ok := userOf(c)
		if !ok {
			return nil
		}
		return fn(tghelpers.BuildContext(c), u, originOf(c))
	}
}

// decision applies a moderator verdict and answers the button with the outcome.
func (a *App) decision(d moderation.Decision) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		var chatID int64
		if ch := c.Chat(); ch != nil {
			chatID = ch.ID
		}
		submitterID, postID, err := callbacks.PayloadTwoInt64(c, moderation.PayloadSep)
		if err != nil {
			_ = c.Respond(&tele.CallbackResponse{Text: prompt.ActionOutdated})
			return fmt.Errorf("decision payload %q: %w", callbacks.CallbackPayload(c), err)
		}
		err = a.mod.Decide(ctx, d, chatID, originOf(c), submitterID, postID)
		answer, err := decisionAnswer(d, err)
		if answer != "" {
			_ = c.Respond(&tele.CallbackResponse{Text: answer})
		}
		if err != nil {
			logger.LogEvent(ctx, logger.SVCModeration, slog.LevelWarn, "moderation.decision.failed",
				slog.String("decision", string(d)),
				slog.String("err", err.Error()),
			)
		}
		return err
	}
}

// decisionAnswer maps the result of Decide to the callback answer.
// Expected refusals are answered and swallowed.
func decisionAnswer(d moderation.Decision, err error) (string, error) {
	switch {
	case err == nil && d == moderation.Approve:
		return prompt.DecisionPublish, nil
	case err == nil:
		return prompt.DecisionReject, nil
	case errors.Is(err, moderation.ErrNotModerator):
		return prompt.NotModerator, nil
	case errors.Is(err, post.ErrStageChanged), errors.Is(err, post.ErrNotFound):
		return prompt.ReviewGone, nil
	case errors.Is(err, moderation.ErrPublish):
		return prompt.DecisionFailed, err
	default:
		return prompt.GenericError, err
	}
}

func (a *App) onAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, adminOnly)
}

func (a *App) onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: tooManyRequests})
	}
	return nil
}
