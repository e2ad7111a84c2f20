package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// HandleText applies free text to the submitter's post.
func (m *Machine) HandleText(ctx context.Context, u User, text string) error {
	if !m.named(ctx, u) {
		return nil
	}
	unlock := m.locks.Lock(u.ID)
	defer unlock()

	p, err := m.active(ctx, u.ID)
	if err != nil {
		return m.fail(ctx, u.ID, err)
	}
	if p == nil {
		m.say(ctx, u.ID, prompt.StartHint, nil)
		return nil
	}
	switch p.Stage {
	case post.StageAwaitingDescription:
		return m.describe(ctx, p, text)
	case post.StageAwaitingBookCount, post.StageAwaitingPaymentReceipt, post.StageAwaitingPhotos,
		post.StageAwaitingModeration, post.StagePublished, post.StageRejected:
		m.hint(ctx, p)
		return nil
	default:
		m.hint(ctx, p)
		return nil
	}
}

func (m *Machine) describe(ctx context.Context, p *post.Post, text string) error {
	if err := post.ValidateDescription(text, m.opts.MinWords, m.opts.MaxWords); err != nil {
		var de *post.DescriptionError
		if !errors.As(err, &de) {
			return err
		}
		m.log.LogAttrs(ctx, slog.LevelDebug, "description.rejected",
			slog.Int64("post_id", p.ID),
			slog.Int("words", de.Words),
			slog.String("outcome", "rejected"),
		)
		if errors.Is(err, post.ErrDescriptionTooLong) {
			m.say(ctx, p.SubmitterID, prompt.DescriptionTooLong(de.Words, de.Max), nil)
		} else {
			m.say(ctx, p.SubmitterID, prompt.DescriptionTooShort(de.Words, de.Min), nil)
		}
		return nil
	}

	p.Description = strings.TrimSpace(text)
	from := p.Stage
	switch m.opts.Variant {
	case post.VariantDescriptionFirst:
		p.Stage = post.StageAwaitingPhotos
		if err := m.save(ctx, p, from); err != nil {
			return m.fail(ctx, p.SubmitterID, err)
		}
		m.say(ctx, p.SubmitterID, prompt.PhotosAfterDescription(m.opts.MaxPhotos), nil)
		return nil
	default:
		return m.submit(ctx, p)
	}
}

// submit sends p to review and commits awaiting_moderation only once the review
// message is out. On failure the post keeps its stage.
func (m *Machine) submit(ctx context.Context, p *post.Post) error {
	review, err := m.mod.Submit(ctx, p)
	if err != nil {
		m.say(ctx, p.SubmitterID, prompt.SubmitFailed, nil)
		return err
	}
	from := p.Stage
	p.Stage = post.StageAwaitingModeration
	p.PhotosFinished = true
	if err := m.save(ctx, p, from); err != nil {
		m.mod.Withdraw(ctx, review)
		return m.fail(ctx, p.SubmitterID, err)
	}
	m.say(ctx, p.SubmitterID, prompt.Submitted, prompt.Menu())
	return nil
}
