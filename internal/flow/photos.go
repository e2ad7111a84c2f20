package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/media"
	"github.com/MyhlovetsVladyslav/bookbot/internal/moderation"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// HandlePhoto takes a receipt or a listing photo, depending on the stage.
func (m *Machine) HandlePhoto(ctx context.Context, u User, ph Photo) error {
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
	case post.StageAwaitingPaymentReceipt:
		return m.takeReceipt(ctx, p, ph)
	case post.StageAwaitingPhotos:
		if ph.GroupID != "" {
			if !m.agg.Add(ctx, u.ID, ph.GroupID, ph.FileID) {
				m.dropped(ctx, "photo.late", u.ID, p, slog.String("group_id", ph.GroupID))
			}
			return nil
		}
		return m.addSingle(ctx, p, ph.FileID)
	case post.StageAwaitingBookCount, post.StageAwaitingDescription, post.StageAwaitingModeration,
		post.StagePublished, post.StageRejected:
		m.hint(ctx, p)
		return nil
	default:
		m.hint(ctx, p)
		return nil
	}
}

func (m *Machine) takeReceipt(ctx context.Context, p *post.Post, ph Photo) error {
	from := p.Stage
	prev := p.PromptMessageID
	p.Receipt = ph.FileID
	p.PromptMessageID = 0
	p.Stage = post.StageAwaitingPhotos
	if err := m.save(ctx, p, from); err != nil {
		return m.fail(ctx, p.SubmitterID, err)
	}
	if prev != 0 {
		ref := chat.MessageRef{ChatID: p.SubmitterID, MessageID: prev}
		if err := m.msg.DeleteMessage(ctx, ref); err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "prompt.delete",
				slog.Int64("post_id", p.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	m.say(ctx, p.SubmitterID, prompt.PhotosAfterReceipt(m.opts.MaxPhotos), nil)
	return nil
}

func (m *Machine) addSingle(ctx context.Context, p *post.Post, fileID string) error {
	if err := p.AddPhotos(m.opts.MaxPhotos, fileID); err != nil {
		m.say(ctx, p.SubmitterID, prompt.PhotoLimit(m.opts.MaxPhotos), prompt.Finish())
		return nil
	}
	if err := m.save(ctx, p, p.Stage); err != nil {
		return m.fail(ctx, p.SubmitterID, err)
	}
	m.agg.ScheduleNotice(ctx, p.SubmitterID)
	return nil
}

// applyBatch appends an album as a whole or not at all and tells the submitter
// when it does not fit. It reports whether p changed.
func (m *Machine) applyBatch(ctx context.Context, p *post.Post, b media.Batch) bool {
	have := len(p.Photos)
	if err := p.AddPhotos(m.opts.MaxPhotos, b.Photos...); err != nil {
		m.log.LogAttrs(ctx, slog.LevelInfo, "album.rejected",
			slog.Int64("post_id", p.ID),
			slog.String("group_id", b.GroupID),
			slog.Int("batch", len(b.Photos)),
			slog.Int("photos", have),
			slog.Int("max_photos", m.opts.MaxPhotos),
			slog.String("outcome", "rejected"),
		)
		m.say(ctx, p.SubmitterID, prompt.AlbumTooLarge(len(b.Photos), have, m.opts.MaxPhotos), prompt.Finish())
		return false
	}
	return true
}

// FlushGroup applies a quiet album. It runs on the album timer.
func (m *Machine) FlushGroup(ctx context.Context, submitterID int64, groupID string) {
	unlock := m.locks.Lock(submitterID)
	defer unlock()

	b, ok := m.agg.Claim(submitterID, groupID)
	if !ok {
		return
	}
	p, err := m.active(ctx, submitterID)
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "album.flush",
			slog.String("group_id", groupID),
			slog.String("err", err.Error()),
		)
		return
	}
	if p == nil || p.Stage != post.StageAwaitingPhotos {
		m.dropped(ctx, "album.flush", submitterID, p, slog.String("group_id", groupID), slog.Int("batch", len(b.Photos)))
		return
	}
	if !m.applyBatch(ctx, p, b) {
		return
	}
	m.agg.CancelNotice(submitterID)
	m.notifyPhotos(ctx, p)
}

// PhotosSettled sends the notice for single photos. It runs on the notice timer.
func (m *Machine) PhotosSettled(ctx context.Context, submitterID int64) {
	unlock := m.locks.Lock(submitterID)
	defer unlock()

	p, err := m.active(ctx, submitterID)
	if err != nil || p == nil || p.Stage != post.StageAwaitingPhotos {
		m.dropped(ctx, "photos.notice", submitterID, p)
		return
	}
	m.notifyPhotos(ctx, p)
}

// notifyPhotos persists p and sends the photo count with the finish button.
// The first notice of a post carries the instructions.
func (m *Machine) notifyPhotos(ctx context.Context, p *post.Post) {
	first := !p.HasSentInstruction
	p.HasSentInstruction = true
	if err := m.save(ctx, p, p.Stage); err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "photos.notice",
			slog.Int64("post_id", p.ID),
			slog.String("err", err.Error()),
		)
		if !errors.Is(err, post.ErrNotFound) {
			m.say(ctx, p.SubmitterID, prompt.GenericError, prompt.Menu())
		}
		return
	}
	m.say(ctx, p.SubmitterID, prompt.PhotosReceived(len(p.Photos), m.opts.MaxPhotos, first), prompt.Finish())
}

// FinishPhotos closes photo collection. Albums still buffering are applied
// first, so photos sent before the press are never lost.
func (m *Machine) FinishPhotos(ctx context.Context, u User) error {
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
	if p.Stage != post.StageAwaitingPhotos {
		m.hint(ctx, p)
		return nil
	}

	changed := false
	for _, b := range m.agg.Drain(u.ID) {
		if m.applyBatch(ctx, p, b) {
			changed = true
		}
	}
	m.agg.CancelNotice(u.ID)
	if len(p.Photos) == 0 {
		m.say(ctx, u.ID, prompt.NoPhotos, prompt.Finish())
		return nil
	}
	if changed {
		if err := m.save(ctx, p, p.Stage); err != nil {
			return m.fail(ctx, u.ID, err)
		}
	}

	switch {
	case m.opts.Variant == post.VariantPaid:
		from := p.Stage
		p.PhotosFinished = true
		p.Stage = post.StageAwaitingDescription
		if err := m.save(ctx, p, from); err != nil {
			return m.fail(ctx, u.ID, err)
		}
		m.say(ctx, u.ID, prompt.DescriptionPrompt(m.opts.MinWords, m.opts.MaxWords), nil)
		return nil
	case m.opts.Moderated:
		return m.submit(ctx, p)
	default:
		p.PhotosFinished = true
		if err := m.mod.PublishNow(ctx, p); err != nil {
			if errors.Is(err, moderation.ErrPublish) {
				m.say(ctx, u.ID, prompt.PublishFailed, prompt.Finish())
				return err
			}
			return m.fail(ctx, u.ID, err)
		}
		return nil
	}
}
