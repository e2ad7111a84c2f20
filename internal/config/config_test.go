package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
)

const sample = `
telegram:
  token: "123:abc"
  admin_id: 10
database:
  host: localhost
  name: bookbot
listing:
  variant: description_first
  channel_id: -1001
  moderated: false
  album_debounce: 1s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesVariantDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	l := cfg.Listing
	if l.PostVariant() != post.VariantDescriptionFirst || l.IsModerated() {
		t.Fatalf("variant=%s moderated=%v", l.Variant, l.IsModerated())
	}
	if l.MaxPhotos != 4 || l.MinWords != 10 || l.MaxWords != 500 {
		t.Fatalf("limits = %d/%d/%d", l.MaxPhotos, l.MinWords, l.MaxWords)
	}
	if l.AlbumDebounce != time.Second || l.AlbumStaleAfter != 5*time.Minute {
		t.Fatalf("durations = %v / %v", l.AlbumDebounce, l.AlbumStaleAfter)
	}
	if cfg.CoreConfig().Telegram.AdminID != 10 || cfg.Database.Port != "5432" {
		t.Fatalf("core=%+v db=%+v", cfg.CoreConfig().Telegram, cfg.Database)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("MODERATOR_CHAT_ID", "-77")
	t.Setenv("LISTING_VARIANT", "paid")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" || cfg.Listing.ModeratorChatID != -77 {
		t.Fatalf("env not applied: %+v", cfg.Listing)
	}
	if !cfg.Listing.IsModerated() || cfg.Listing.MaxPhotos != 8 || len(cfg.Listing.PriceTiers) != 6 {
		t.Fatalf("paid defaults not applied: %+v", cfg.Listing)
	}
}

func TestListingNormalizeRejects(t *testing.T) {
	cases := map[string]ListingConfig{
		"unknown variant":   {Variant: "auction", ChannelID: 1, ModeratorChatID: 2},
		"no channel":        {Variant: "paid", ModeratorChatID: 2},
		"no moderator chat": {Variant: "paid", ChannelID: 1},
		"words inverted":    {Variant: "description_first", ChannelID: 1, ModeratorChatID: 2, MinWords: 50, MaxWords: 10},
		"bad tiers": {Variant: "paid", ChannelID: 1, ModeratorChatID: 2,
			PriceTiers: []post.PriceTier{{From: 5, To: 1, Price: 3}}},
		"album over telegram limit": {Variant: "paid", ChannelID: 1, ModeratorChatID: 2, MaxPhotos: 11},
		"stale shorter than debounce": {Variant: "paid", ChannelID: 1, ModeratorChatID: 2,
			AlbumDebounce: time.Minute, AlbumStaleAfter: time.Second},
	}
	for name, l := range cases {
		l := l
		if err := l.Normalize(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
