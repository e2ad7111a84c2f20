package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/callbacks"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat/chattest"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

const (
	moderatorChat = int64(-500)
	channel       = int64(-900)
	submitter     = int64(42)
)

func setup(t *testing.T, photos ...string) (*Service, *post.MemoryStore, *chattest.Recorder, *post.Post) {
	t.Helper()
	store := post.NewMemoryStore(nil)
	rec := chattest.New()
	svc := New(store, rec, post.NewLocks(), Options{ModeratorChatID: moderatorChat, ChannelID: channel})
	p := &post.Post{
		SubmitterID: submitter,
		Stage:       post.StageAwaitingModeration,
		Photos:      photos,
		Description: "Ten classic novels in good condition, pickup in Kyiv only",
		Receipt:     "receipt-1",
		PriceText:   "1-4",
		Username:    "@reader",
	}
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return svc, store, rec, p
}

var review = chat.MessageRef{ChatID: moderatorChat, MessageID: 77}

func TestApprovePublishesAllPhotosOnceInOrder(t *testing.T) {
	svc, store, rec, p := setup(t, "p1", "p2", "p3")
	ctx := context.Background()
	if err := svc.Decide(ctx, Approve, moderatorChat, review, submitter, p.ID); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	albums := rec.Ops(chattest.OpAlbum)
	if len(albums) != 1 || len(rec.Ops(chattest.OpPhoto)) != 0 {
		t.Fatalf("albums=%d photos=%d", len(albums), len(rec.Ops(chattest.OpPhoto)))
	}
	if albums[0].ChatID != channel || fmt.Sprint(albums[0].Photos) != "[p1 p2 p3]" {
		t.Fatalf("album = %+v", albums[0])
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Stage != post.StagePublished {
		t.Fatalf("stage = %s", got.Stage)
	}
	if !rec.Contains(submitter, prompt.Published) {
		t.Fatal("submitter not told about publication")
	}
	if dels := rec.Ops(chattest.OpDelete); len(dels) != 1 || dels[0].Ref != review {
		t.Fatalf("review message not consumed: %+v", dels)
	}

	// A second press on the same review message must not publish again.
	err := svc.Decide(ctx, Approve, moderatorChat, review, submitter, p.ID)
	if !errors.Is(err, post.ErrStageChanged) {
		t.Fatalf("second approve err = %v", err)
	}
	if len(rec.Ops(chattest.OpAlbum)) != 1 {
		t.Fatal("post published twice")
	}
}

func TestApproveSinglePhotoUsesPhotoSend(t *testing.T) {
	svc, _, rec, p := setup(t, "only")
	if err := svc.Decide(context.Background(), Approve, moderatorChat, review, submitter, p.ID); err != nil {
		t.Fatal(err)
	}
	photos := rec.Ops(chattest.OpPhoto)
	if len(photos) != 1 || photos[0].ChatID != channel || photos[0].Photos[0] != "only" {
		t.Fatalf("photos = %+v", photos)
	}
	if len(rec.Ops(chattest.OpAlbum)) != 0 {
		t.Fatal("single photo sent as album")
	}
}

func TestRejectDoesNotPublish(t *testing.T) {
	svc, store, rec, p := setup(t, "p1", "p2")
	ctx := context.Background()
	if err := svc.Decide(ctx, Reject, moderatorChat, review, submitter, p.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Stage != post.StageRejected {
		t.Fatalf("stage = %s", got.Stage)
	}
	for _, c := range rec.Calls() {
		if c.ChatID == channel {
			t.Fatalf("rejected post reached the channel: %+v", c)
		}
	}
	if !rec.Contains(submitter, prompt.Rejected) {
		t.Fatal("submitter not told about rejection")
	}
}

func TestFailedPublishKeepsModerationStage(t *testing.T) {
	svc, store, rec, p := setup(t, "p1", "p2")
	rec.Fail(chattest.OpAlbum, errors.New("telegram: bad gateway (502)"))
	ctx := context.Background()
	err := svc.Decide(ctx, Approve, moderatorChat, review, submitter, p.ID)
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("err = %v, want ErrPublish", err)
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Stage != post.StageAwaitingModeration {
		t.Fatalf("stage = %s", got.Stage)
	}
	if !rec.Contains(submitter, prompt.PublishFailed) {
		t.Fatal("submitter not told about the failure")
	}
	if len(rec.Ops(chattest.OpDelete)) != 1 {
		t.Fatal("review message should be consumed on failure too")
	}
}

// failingUpdates refuses every Update after the post reached the channel.
type failingUpdates struct {
	post.Store
	err error
}

func (f failingUpdates) Update(context.Context, *post.Post) error { return f.err }

func TestPersistFailureAfterPublishStillTellsSubmitter(t *testing.T) {
	svc, store, rec, p := setup(t, "p1", "p2")
	dbErr := errors.New("pq: connection reset")
	svc.store = failingUpdates{Store: store, err: dbErr}
	ctx := context.Background()

	err := svc.Decide(ctx, Approve, moderatorChat, review, submitter, p.ID)
	if !errors.Is(err, dbErr) || errors.Is(err, ErrPublish) {
		t.Fatalf("err = %v, want the store error", err)
	}
	if len(rec.Ops(chattest.OpAlbum)) != 1 {
		t.Fatal("album not published")
	}
	if !rec.Contains(submitter, prompt.Published) {
		t.Fatal("submitter not told the listing is live")
	}
	if rec.Contains(submitter, prompt.PublishFailed) {
		t.Fatal("submitter told publishing failed although the album is in the channel")
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Stage != post.StageAwaitingModeration {
		t.Fatalf("stored stage = %s", got.Stage)
	}
}

func TestDecisionFromOtherChatIsRefused(t *testing.T) {
	svc, store, rec, p := setup(t, "p1")
	ctx := context.Background()
	err := svc.Decide(ctx, Approve, submitter, chat.MessageRef{ChatID: submitter, MessageID: 1}, submitter, p.ID)
	if !errors.Is(err, ErrNotModerator) {
		t.Fatalf("err = %v", err)
	}
	got, _ := store.Get(ctx, p.ID)
	if got.Stage != post.StageAwaitingModeration || len(rec.Calls()) != 0 {
		t.Fatalf("stage=%s calls=%d", got.Stage, len(rec.Calls()))
	}
}

func TestSubmitUsesReceiptAndEncodesPayload(t *testing.T) {
	svc, _, rec, p := setup(t, "p1", "p2")
	if _, err := svc.Submit(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	calls := rec.Ops(chattest.OpPhoto)
	if len(calls) != 1 || calls[0].ChatID != moderatorChat || calls[0].Photos[0] != "receipt-1" {
		t.Fatalf("review = %+v", calls)
	}
	if !calls[0].HasButton(prompt.KeyApprove) || !calls[0].HasButton(prompt.KeyReject) {
		t.Fatal("review message lacks decision buttons")
	}
	sub, id, err := callbacks.SplitTwoInt64(calls[0].Keyboard[0][0].Data, PayloadSep)
	if err != nil || sub != submitter || id != p.ID {
		t.Fatalf("payload = %d, %d, %v", sub, id, err)
	}

	p.Receipt = ""
	rec.Reset()
	if _, err := svc.Submit(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got := rec.Ops(chattest.OpPhoto)[0].Photos[0]; got != "p1" {
		t.Fatalf("review photo without receipt = %s", got)
	}
}

func TestSubmitWithoutPhotosFails(t *testing.T) {
	svc, _, rec, p := setup(t)
	if _, err := svc.Submit(context.Background(), p); !errors.Is(err, post.ErrNoPhotos) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Fatal("review sent without photos")
	}
}
