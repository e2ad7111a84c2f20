// Package moderation sends finished posts to review and publishes approved ones.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/callbacks"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// Decision is a moderator verdict.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// PayloadSep separates the submitter and post ids in a decision payload.
const PayloadSep = "|"

var (
	// ErrNotModerator is returned for decisions coming from another chat.
	ErrNotModerator = errors.New("decision outside the moderator chat")
	// ErrPublish wraps a failed forward to the channel.
	ErrPublish = errors.New("publish failed")
)

// Options name the review and publication chats.
type Options struct {
	ModeratorChatID int64
	ChannelID       int64
}

// Service forwards posts to the moderator chat and the channel.
type Service struct {
	store post.Store
	msg   chat.Messenger
	locks *post.Locks
	opts  Options
	log   *slog.Logger
}

// New returns a Service. locks must be the table the submission flow uses.
func New(store post.Store, msg chat.Messenger, locks *post.Locks, opts Options) *Service {
	return &Service{store: store, msg: msg, locks: locks, opts: opts, log: logger.SVCModeration}
}

// Payload encodes the decision button payload.
func Payload(submitterID, postID int64) string {
	return callbacks.JoinInt64(PayloadSep, submitterID, postID)
}

// Submit sends the review message for p. The caller holds the submitter lock
// and persists awaiting_moderation only after Submit succeeds.
func (s *Service) Submit(ctx context.Context, p *post.Post) (chat.MessageRef, error) {
	if len(p.Photos) == 0 {
		return chat.MessageRef{}, post.ErrNoPhotos
	}
	photo := p.Receipt
	if photo == "" {
		photo = p.Photos[0]
	}
	ref, err := s.msg.SendPhoto(ctx, s.opts.ModeratorChatID, photo, prompt.ReviewCaption(p),
		prompt.Review(Payload(p.SubmitterID, p.ID)))
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "moderation.submit",
			slog.Int64("post_id", p.ID),
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		return chat.MessageRef{}, fmt.Errorf("send review message: %w", err)
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "moderation.submit",
		slog.Int64("post_id", p.ID),
		slog.Int("photos", len(p.Photos)),
	)
	return ref, nil
}

// Withdraw removes a review message whose post could not be moved to moderation.
func (s *Service) Withdraw(ctx context.Context, ref chat.MessageRef) {
	if err := s.msg.DeleteMessage(ctx, ref); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "moderation.withdraw",
			slog.String("err", err.Error()),
		)
	}
}

// Publish forwards p to the channel: one photo as a photo, more as an album.
func (s *Service) Publish(ctx context.Context, p *post.Post) error {
	if len(p.Photos) == 0 {
		return post.ErrNoPhotos
	}
	if err := chat.SendPhotos(ctx, s.msg, s.opts.ChannelID, p.Photos, prompt.ChannelCaption(p)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// PublishNow publishes p and marks it published. The caller holds the submitter lock.
func (s *Service) PublishNow(ctx context.Context, p *post.Post) error {
	if err := s.Publish(ctx, p); err != nil {
		s.logDecision(ctx, p, Approve, err)
		return err
	}
	from := p.Stage
	p.Stage = post.StagePublished
	if err := s.store.Update(ctx, p); err != nil {
		// The listing is already in the channel; the stored stage lags behind.
		s.log.LogAttrs(ctx, slog.LevelError, "post.persist",
			slog.Int64("post_id", p.ID),
			slog.String("stage", string(post.StagePublished)),
			slog.String("from_stage", string(from)),
			slog.String("err", err.Error()),
		)
		s.tell(ctx, p.SubmitterID, prompt.Published)
		return fmt.Errorf("persist published post %d: %w", p.ID, err)
	}
	s.logDecision(ctx, p, Approve, nil)
	s.tell(ctx, p.SubmitterID, prompt.Published)
	return nil
}

// Decide applies a moderator decision from chatID to the post named by the
// button payload. review is the moderator message, deleted whatever the outcome.
func (s *Service) Decide(ctx context.Context, d Decision, chatID int64, review chat.MessageRef, submitterID, postID int64) error {
	if chatID != s.opts.ModeratorChatID {
		return ErrNotModerator
	}
	defer s.Withdraw(ctx, review)

	unlock := s.locks.Lock(submitterID)
	defer unlock()

	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return err
	}
	if p.SubmitterID != submitterID || p.Stage != post.StageAwaitingModeration {
		s.log.LogAttrs(ctx, slog.LevelInfo, "moderation.decision",
			slog.Int64("post_id", postID),
			slog.String("decision", string(d)),
			slog.String("stage", string(p.Stage)),
			slog.String("status", "skip"),
		)
		return post.ErrStageChanged
	}

	switch d {
	case Approve:
		if err := s.PublishNow(ctx, p); err != nil {
			if errors.Is(err, ErrPublish) {
				s.tell(ctx, p.SubmitterID, prompt.PublishFailed)
			}
			return err
		}
		return nil
	case Reject:
		p.Stage = post.StageRejected
		if err := s.store.Update(ctx, p); err != nil {
			return fmt.Errorf("persist rejected post %d: %w", p.ID, err)
		}
		s.logDecision(ctx, p, Reject, nil)
		s.tell(ctx, p.SubmitterID, prompt.Rejected)
		return nil
	default:
		return fmt.Errorf("unknown decision %q", d)
	}
}

func (s *Service) tell(ctx context.Context, chatID int64, text string) {
	if _, err := s.msg.SendText(ctx, chatID, text, prompt.Menu()); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "notify.submitter",
			slog.Int64("chat_id", chatID),
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) logDecision(ctx context.Context, p *post.Post, d Decision, err error) {
	attrs := []slog.Attr{
		slog.Int64("post_id", p.ID),
		slog.String("decision", string(d)),
		slog.String("stage", string(p.Stage)),
		slog.Int("photos", len(p.Photos)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("status", "error"), slog.String("err", err.Error()))
	}
	s.log.LogAttrs(ctx, level, "moderation.decision", attrs...)
}
