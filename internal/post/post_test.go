package post

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStageClassification(t *testing.T) {
	cases := []struct {
		stage       Stage
		terminal    bool
		cancellable bool
	}{
		{StageAwaitingBookCount, false, true},
		{StageAwaitingPaymentReceipt, false, true},
		{StageAwaitingPhotos, false, true},
		{StageAwaitingDescription, false, true},
		{StageAwaitingModeration, false, false},
		{StagePublished, true, false},
		{StageRejected, true, false},
	}
	for _, tc := range cases {
		if !tc.stage.IsValid() {
			t.Errorf("%s: expected valid", tc.stage)
		}
		if got := tc.stage.Terminal(); got != tc.terminal {
			t.Errorf("%s: Terminal() = %v", tc.stage, got)
		}
		if got := tc.stage.Cancellable(); got != tc.cancellable {
			t.Errorf("%s: Cancellable() = %v", tc.stage, got)
		}
	}
	if Stage("draft").IsValid() {
		t.Fatal("unknown stage reported valid")
	}
}

func TestVariantFirstStage(t *testing.T) {
	if got := VariantPaid.FirstStage(); got != StageAwaitingBookCount {
		t.Fatalf("paid first stage = %s", got)
	}
	if got := VariantDescriptionFirst.FirstStage(); got != StageAwaitingDescription {
		t.Fatalf("description_first first stage = %s", got)
	}
	if Variant("free").IsValid() {
		t.Fatal("unknown variant reported valid")
	}
}

func TestAddPhotosRejectsWholeBatch(t *testing.T) {
	p := &Post{Photos: []string{"a", "b"}}
	if err := p.AddPhotos(4, "c", "d", "e"); !errors.Is(err, ErrPhotoLimit) {
		t.Fatalf("err = %v, want ErrPhotoLimit", err)
	}
	if len(p.Photos) != 2 {
		t.Fatalf("photos = %v, want unchanged", p.Photos)
	}
	if err := p.AddPhotos(4, "c", "d"); err != nil {
		t.Fatalf("AddPhotos: %v", err)
	}
	if got := p.Photos; len(got) != 4 || got[3] != "d" {
		t.Fatalf("photos = %v", got)
	}
}

func TestDisplayNameDefault(t *testing.T) {
	if got := (&Post{}).DisplayName(); got != UnknownUser {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := (&Post{Username: "@reader"}).DisplayName(); got != "@reader" {
		t.Fatalf("DisplayName() = %q", got)
	}
}

func TestValidateDescription(t *testing.T) {
	err := ValidateDescription("a b c d e", 10, 500)
	var de *DescriptionError
	if !errors.As(err, &de) || de.Words != 5 {
		t.Fatalf("err = %v, want DescriptionError with 5 words", err)
	}
	if !errors.Is(err, ErrDescriptionTooShort) || errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("err = %v classified wrong", err)
	}
	if err := ValidateDescription("one two three four five six seven eight nine ten", 10, 500); err != nil {
		t.Fatalf("10 words: %v", err)
	}
	if err := ValidateDescription("a b c", 1, 2); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("err = %v, want too long", err)
	}
	if err := ValidateDescription("   ", 0, 0); err == nil {
		t.Fatal("empty description accepted")
	}
}

func TestPriceTiers(t *testing.T) {
	if err := ValidateTiers(DefaultPriceTiers); err != nil {
		t.Fatalf("default tiers: %v", err)
	}
	tier, ok := FindTier(DefaultPriceTiers, "books_25_30")
	if !ok || tier.PriceLabel() != "30 UAH" {
		t.Fatalf("FindTier = %+v, %v", tier, ok)
	}
	if _, ok := FindTier(DefaultPriceTiers, "books_2_3"); ok {
		t.Fatal("unexpected tier")
	}
	overlap := []PriceTier{{From: 1, To: 5, Price: 1}, {From: 5, To: 9, Price: 2}}
	if err := ValidateTiers(overlap); err == nil {
		t.Fatal("overlapping tiers accepted")
	}
}

func TestLocksSerializeAndRelease(t *testing.T) {
	locks := NewLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d", maxSeen)
	}
	if n := locks.Len(); n != 0 {
		t.Fatalf("lock table not drained: %d", n)
	}
	unlock := locks.Lock(1)
	unlock()
	unlock()
	if n := locks.Len(); n != 0 {
		t.Fatalf("double release left %d entries", n)
	}
}

func TestMemoryStoreSingleActivePost(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(ctx, &Post{SubmitterID: 5, Stage: StageAwaitingBookCount})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, ErrActivePost) {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("created %d active posts", created)
	}
}

func TestMemoryStoreUpdateAfterDelete(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	p := &Post{SubmitterID: 1, Stage: StageAwaitingPhotos}
	if err := store.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.Delete(ctx, p.ID); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if err := store.Update(ctx, p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update after delete = %v", err)
	}
}

func TestMemoryStoreDeleteExpiredSkipsTerminal(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()
	old := now.Add(-2 * time.Hour)
	stale := &Post{SubmitterID: 1, Stage: StageAwaitingPhotos, CreatedAt: old}
	published := &Post{SubmitterID: 2, Stage: StagePublished, CreatedAt: old}
	fresh := &Post{SubmitterID: 3, Stage: StageAwaitingDescription}
	for _, p := range []*Post{stale, published, fresh} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	expired, err := store.DeleteExpired(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].PostID != stale.ID || expired[0].SubmitterID != 1 {
		t.Fatalf("expired = %+v", expired)
	}
	if again, _ := store.DeleteExpired(ctx, now.Add(-time.Hour)); len(again) != 0 {
		t.Fatalf("second sweep returned %+v", again)
	}
	if ok, _ := store.Delete(ctx, published.ID); ok {
		t.Fatal("published post deleted")
	}
}
