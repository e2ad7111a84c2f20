// Package flow drives a submitter's post through its stages.
//
// Every operation takes the submitter lock, re-reads the post from the store,
// checks the stage, persists the change and only then prompts the submitter.
// Deferred work (album flushes, photo notices) follows the same rule, so an
// action that lost a race against another transition is dropped.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/media"
	"github.com/MyhlovetsVladyslav/bookbot/internal/moderation"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// Options select the variant and its limits.
type Options struct {
	Variant post.Variant
	// Moderated sends finished posts to review; otherwise they are published directly.
	// The paid variant is always moderated.
	Moderated bool
	MaxPhotos int
	MinWords  int
	MaxWords  int
	Tiers     []post.PriceTier
	Media     media.Options
}

// User is the sender of an update. In private chats the chat id equals the user id.
type User struct {
	ID       int64
	Username string
}

// DisplayName renders the username as a mention.
func (u User) DisplayName() string {
	if u.Username == "" {
		return ""
	}
	return "@" + u.Username
}

// Photo is an inbound photo. GroupID is set for album members.
type Photo struct {
	FileID  string
	GroupID string
}

// Machine implements the submission flow.
type Machine struct {
	store post.Store
	msg   chat.Messenger
	mod   *moderation.Service
	locks *post.Locks
	agg   *media.Aggregator
	opts  Options
	log   *slog.Logger
}

// New returns a Machine with its own album aggregator.
func New(store post.Store, msg chat.Messenger, mod *moderation.Service, locks *post.Locks, opts Options) *Machine {
	if !opts.Variant.IsValid() {
		opts.Variant = post.VariantPaid
	}
	if opts.Variant == post.VariantPaid {
		opts.Moderated = true
	}
	if opts.MaxPhotos <= 0 {
		opts.MaxPhotos = 8
	}
	if len(opts.Tiers) == 0 {
		opts.Tiers = post.DefaultPriceTiers
	}
	m := &Machine{
		store: store,
		msg:   msg,
		mod:   mod,
		locks: locks,
		opts:  opts,
		log:   logger.SVCPosts,
	}
	m.agg = media.New(opts.Media, m)
	return m
}

// Aggregator exposes the album table so the caller can run its reaper.
func (m *Machine) Aggregator() *media.Aggregator { return m.agg }

// Tiers returns the configured price tiers.
func (m *Machine) Tiers() []post.PriceTier { return m.opts.Tiers }

// Forget drops in-memory state of a submitter whose post is gone.
func (m *Machine) Forget(submitterID int64) { m.agg.Forget(submitterID) }

// active returns the submitter's active post or nil.
func (m *Machine) active(ctx context.Context, submitterID int64) (*post.Post, error) {
	p, err := m.store.Active(ctx, submitterID)
	if errors.Is(err, post.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active post: %w", err)
	}
	return p, nil
}

// save persists p and logs the transition when the stage changed.
func (m *Machine) save(ctx context.Context, p *post.Post, from post.Stage) error {
	if err := m.store.Update(ctx, p); err != nil {
		return fmt.Errorf("save post %d: %w", p.ID, err)
	}
	if from != p.Stage {
		m.log.LogAttrs(ctx, slog.LevelInfo, "post.transition",
			slog.Int64("post_id", p.ID),
			slog.String("from_stage", string(from)),
			slog.String("stage", string(p.Stage)),
			slog.Int("photos", len(p.Photos)),
		)
	}
	return nil
}

// say sends text and logs a failed send; prompts are best effort once state is saved.
func (m *Machine) say(ctx context.Context, chatID int64, text string, kb chat.Keyboard) chat.MessageRef {
	ref, err := m.msg.SendText(ctx, chatID, text, kb)
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "prompt.send",
			slog.Int64("chat_id", chatID),
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
	}
	return ref
}

// named reports whether u has a username and asks for one otherwise.
// Every entry point requires it because published listings mention the submitter.
func (m *Machine) named(ctx context.Context, u User) bool {
	if u.Username != "" {
		return true
	}
	m.say(ctx, u.ID, prompt.NeedUsername, nil)
	return false
}

// fail apologizes to the submitter and returns err for the handler summary.
func (m *Machine) fail(ctx context.Context, chatID int64, err error) error {
	m.say(ctx, chatID, prompt.GenericError, prompt.Menu())
	return err
}

// hint re-prompts for the input the current stage expects.
func (m *Machine) hint(ctx context.Context, p *post.Post) {
	chatID := p.SubmitterID
	switch p.Stage {
	case post.StageAwaitingBookCount:
		m.say(ctx, chatID, prompt.ChooseFromKeys, nil)
	case post.StageAwaitingPaymentReceipt:
		m.say(ctx, chatID, prompt.ReceiptExpected, prompt.BackToBookCount())
	case post.StageAwaitingPhotos:
		m.say(ctx, chatID, prompt.PhotosExpected, prompt.Finish())
	case post.StageAwaitingDescription:
		m.say(ctx, chatID, prompt.TextExpected, nil)
	case post.StageAwaitingModeration:
		m.say(ctx, chatID, prompt.UnderReview, nil)
	case post.StagePublished, post.StageRejected:
		m.say(ctx, chatID, prompt.StartHint, nil)
	default:
		m.log.LogAttrs(ctx, slog.LevelError, "post.stage_unknown",
			slog.Int64("post_id", p.ID),
			slog.String("stage", string(p.Stage)),
		)
		m.say(ctx, chatID, prompt.StartHint, nil)
	}
}

func (m *Machine) dropped(ctx context.Context, event string, submitterID int64, p *post.Post, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Int64("user_id", submitterID), slog.String("status", "skip"))
	if p != nil {
		attrs = append(attrs, slog.Int64("post_id", p.ID), slog.String("stage", string(p.Stage)))
	}
	m.log.LogAttrs(ctx, slog.LevelDebug, event, attrs...)
}
