package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// Start registers the submitter and shows the main menu.
func (m *Machine) Start(ctx context.Context, u User) error {
	if !m.named(ctx, u) {
		return nil
	}
	if err := m.store.UpsertSubmitter(ctx, post.Submitter{ID: u.ID, Username: u.DisplayName()}); err != nil {
		return m.fail(ctx, u.ID, fmt.Errorf("upsert submitter: %w", err))
	}
	m.say(ctx, u.ID, prompt.Welcome, prompt.Menu())
	return nil
}

// SellBooks creates a post in the variant's first stage.
func (m *Machine) SellBooks(ctx context.Context, u User, origin chat.MessageRef) error {
	if !m.named(ctx, u) {
		return nil
	}
	unlock := m.locks.Lock(u.ID)
	defer unlock()

	existing, err := m.active(ctx, u.ID)
	if err != nil {
		return m.fail(ctx, u.ID, err)
	}
	if existing != nil {
		m.refuseSecond(ctx, existing)
		return nil
	}

	p := &post.Post{
		SubmitterID: u.ID,
		Stage:       m.opts.Variant.FirstStage(),
		Username:    u.DisplayName(),
	}
	if err := m.store.Create(ctx, p); err != nil {
		if errors.Is(err, post.ErrActivePost) {
			m.say(ctx, u.ID, prompt.ActivePost, nil)
			return nil
		}
		return m.fail(ctx, u.ID, fmt.Errorf("create post: %w", err))
	}
	m.log.InfoContext(ctx, "post.created",
		"post_id", p.ID,
		"stage", string(p.Stage),
	)

	switch m.opts.Variant {
	case post.VariantDescriptionFirst:
		m.say(ctx, u.ID, prompt.DescriptionFirstPrompt(m.opts.MinWords, m.opts.MaxWords), nil)
	default:
		_, _ = chat.EditOrSend(ctx, m.msg, origin, u.ID, prompt.ChooseBookCount, prompt.Tiers(m.opts.Tiers))
	}
	return nil
}

func (m *Machine) refuseSecond(ctx context.Context, existing *post.Post) {
	if existing.Stage == post.StageAwaitingModeration {
		m.say(ctx, existing.SubmitterID, prompt.UnderReview, nil)
		return
	}
	m.say(ctx, existing.SubmitterID, prompt.ActivePost, nil)
}

// SelectTier records the chosen price tier and asks for the receipt.
func (m *Machine) SelectTier(ctx context.Context, u User, key string, origin chat.MessageRef) error {
	if !m.named(ctx, u) {
		return nil
	}
	tier, ok := post.FindTier(m.opts.Tiers, key)
	if !ok {
		m.say(ctx, u.ID, prompt.ActionOutdated, nil)
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
	if p.Stage != post.StageAwaitingBookCount {
		m.hint(ctx, p)
		return nil
	}
	from := p.Stage
	p.Price = tier.PriceLabel()
	p.PriceText = tier.Range()
	p.Stage = post.StageAwaitingPaymentReceipt
	if err := m.save(ctx, p, from); err != nil {
		return m.fail(ctx, u.ID, err)
	}

	ref, err := chat.EditOrSend(ctx, m.msg, origin, u.ID, prompt.ReceiptPrompt(tier), prompt.BackToBookCount())
	if err != nil || ref.MessageID == p.PromptMessageID {
		return nil
	}
	p.PromptMessageID = ref.MessageID
	if err := m.save(ctx, p, p.Stage); err != nil {
		m.dropped(ctx, "prompt.remember", u.ID, p)
	}
	return nil
}

// BackToBookCount clears the chosen tier and shows the tier list again.
func (m *Machine) BackToBookCount(ctx context.Context, u User, origin chat.MessageRef) error {
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
	if p.Stage != post.StageAwaitingPaymentReceipt {
		m.hint(ctx, p)
		return nil
	}
	from := p.Stage
	p.Price, p.PriceText = "", ""
	p.PromptMessageID = 0
	p.Stage = post.StageAwaitingBookCount
	if err := m.save(ctx, p, from); err != nil {
		return m.fail(ctx, u.ID, err)
	}
	_, _ = chat.EditOrSend(ctx, m.msg, origin, u.ID, prompt.ChooseBookCount, prompt.Tiers(m.opts.Tiers))
	return nil
}

// BackToMenu drops an unsubmitted post and shows the menu.
func (m *Machine) BackToMenu(ctx context.Context, u User, origin chat.MessageRef) error {
	if !m.named(ctx, u) {
		return nil
	}
	unlock := m.locks.Lock(u.ID)
	defer unlock()

	p, err := m.active(ctx, u.ID)
	if err != nil {
		return m.fail(ctx, u.ID, err)
	}
	if p != nil && p.Stage.Cancellable() {
		if err := m.remove(ctx, p); err != nil {
			return m.fail(ctx, u.ID, err)
		}
	}
	_, _ = chat.EditOrSend(ctx, m.msg, origin, u.ID, prompt.Welcome, prompt.Menu())
	return nil
}

// Search answers with a placeholder; search is not implemented.
func (m *Machine) Search(ctx context.Context, u User) error {
	if !m.named(ctx, u) {
		return nil
	}
	m.say(ctx, u.ID, prompt.SearchStub, prompt.Menu())
	return nil
}

// Listings shows every post the submitter has made.
func (m *Machine) Listings(ctx context.Context, u User) error {
	if !m.named(ctx, u) {
		return nil
	}
	posts, err := m.store.ListBySubmitter(ctx, u.ID)
	if err != nil {
		return m.fail(ctx, u.ID, err)
	}
	m.say(ctx, u.ID, prompt.Listings(posts), prompt.Menu())
	return nil
}

// Cancel deletes the submitter's post unless it is under review.
func (m *Machine) Cancel(ctx context.Context, u User) error {
	if !m.named(ctx, u) {
		return nil
	}
	unlock := m.locks.Lock(u.ID)
	defer unlock()

	p, err := m.active(ctx, u.ID)
	if err != nil {
		return m.fail(ctx, u.ID, err)
	}
	switch {
	case p == nil:
		m.say(ctx, u.ID, prompt.NothingToCancel, prompt.Menu())
	case !p.Stage.Cancellable():
		m.say(ctx, u.ID, prompt.CannotCancel, nil)
	default:
		if err := m.remove(ctx, p); err != nil {
			return m.fail(ctx, u.ID, err)
		}
		m.say(ctx, u.ID, prompt.Cancelled, prompt.Menu())
	}
	return nil
}

func (m *Machine) remove(ctx context.Context, p *post.Post) error {
	deleted, err := m.store.Delete(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", p.ID, err)
	}
	m.agg.Forget(p.SubmitterID)
	m.log.InfoContext(ctx, "post.deleted",
		"post_id", p.ID,
		"stage", string(p.Stage),
		"outcome", outcome(deleted),
	)
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
