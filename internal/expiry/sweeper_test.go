package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MyhlovetsVladyslav/bookbot/internal/chat/chattest"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

func TestRunOnceNotifiesEachSubmitterOnce(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := post.NewMemoryStore(clock)
	rec := chattest.New()
	var forgotten []int64
	sw := New(store, rec, Options{
		After:     time.Hour,
		Now:       clock,
		OnExpired: func(e post.Expired) { forgotten = append(forgotten, e.SubmitterID) },
	})
	ctx := context.Background()
	old := now.Add(-2 * time.Hour)
	for _, p := range []*post.Post{
		{SubmitterID: 1, Stage: post.StageAwaitingPhotos, CreatedAt: old},
		{SubmitterID: 2, Stage: post.StageAwaitingModeration, CreatedAt: old},
		{SubmitterID: 3, Stage: post.StagePublished, CreatedAt: old},
		{SubmitterID: 4, Stage: post.StageAwaitingDescription},
	} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	res, err := sw.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 2 || res.Notified != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, id := range []int64{1, 2} {
		if got := rec.To(id); len(got) != 1 || got[0].Text != prompt.Expired {
			t.Fatalf("submitter %d got %+v", id, got)
		}
	}
	if len(rec.To(3)) != 0 || len(rec.To(4)) != 0 {
		t.Fatal("published or fresh post notified")
	}
	if len(forgotten) != 2 {
		t.Fatalf("OnExpired calls = %v", forgotten)
	}

	if res, _ := sw.RunOnce(ctx); res.Expired != 0 {
		t.Fatalf("second sweep = %+v", res)
	}
	if len(rec.Calls()) != 2 {
		t.Fatalf("notifications after second sweep = %d", len(rec.Calls()))
	}
	if p, err := store.Active(ctx, 4); err != nil || p.Stage != post.StageAwaitingDescription {
		t.Fatalf("fresh post: %v, %v", p, err)
	}
}

func TestRunOnceToleratesNotifyFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := post.NewMemoryStore(clock)
	rec := chattest.New()
	rec.Fail(chattest.OpNotify, errors.New("blocked by user"))
	sw := New(store, rec, Options{After: time.Minute, Now: clock})
	ctx := context.Background()
	if err := store.Create(ctx, &post.Post{SubmitterID: 9, Stage: post.StageAwaitingBookCount, CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	res, err := sw.RunOnce(ctx)
	if err != nil || res.Expired != 1 || res.Notified != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if _, err := store.Active(ctx, 9); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("post still active: %v", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	sw := New(post.NewMemoryStore(nil), chattest.New(), Options{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
