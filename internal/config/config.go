// Package config is the bookbot configuration: the core sections plus the
// database and the listing flow.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/MyhlovetsVladyslav/bookbot/core/config"
	coredatabase "github.com/MyhlovetsVladyslav/bookbot/core/database"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
)

// Config is the root of config.yaml.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Listing  ListingConfig       `yaml:"listing"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// ListingConfig configures the submission flow.
type ListingConfig struct {
	Variant         string `yaml:"variant" envconfig:"LISTING_VARIANT"`
	ChannelID       int64  `yaml:"channel_id" envconfig:"CHANNEL_ID"`
	ModeratorChatID int64  `yaml:"moderator_chat_id" envconfig:"MODERATOR_CHAT_ID"`
	// Moderated only matters for description_first; paid listings are always reviewed.
	Moderated *bool `yaml:"moderated" envconfig:"LISTING_MODERATED"`
	MaxPhotos int   `yaml:"max_photos" envconfig:"LISTING_MAX_PHOTOS"`
	MinWords  int   `yaml:"min_words" envconfig:"LISTING_MIN_WORDS"`
	MaxWords  int   `yaml:"max_words" envconfig:"LISTING_MAX_WORDS"`

	AlbumDebounce      time.Duration `yaml:"album_debounce"`
	NotifyDebounce     time.Duration `yaml:"notify_debounce"`
	AlbumStaleAfter    time.Duration `yaml:"album_stale_after"`
	AlbumSweepInterval time.Duration `yaml:"album_sweep_interval"`
	ExpireAfter        time.Duration `yaml:"expire_after" envconfig:"LISTING_EXPIRE_AFTER"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`

	PriceTiers []post.PriceTier `yaml:"price_tiers" ignored:"true"`
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := coreconfig.LoadInto(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	return c.Listing.Normalize()
}

// PostVariant returns the parsed variant.
func (l ListingConfig) PostVariant() post.Variant {
	return post.Variant(l.Variant)
}

// IsModerated reports whether finished posts go to review.
func (l ListingConfig) IsModerated() bool {
	if l.PostVariant() == post.VariantPaid {
		return true
	}
	return l.Moderated == nil || *l.Moderated
}

// maxAlbumSize is the most photos sendMediaGroup accepts.
const maxAlbumSize = 10

// Normalize applies the variant defaults and checks the chat ids.
func (l *ListingConfig) Normalize() error {
	l.Variant = strings.ToLower(strings.TrimSpace(l.Variant))
	if l.Variant == "" {
		l.Variant = string(post.VariantPaid)
	}
	v := l.PostVariant()
	if !v.IsValid() {
		return fmt.Errorf("invalid listing.variant %q; allowed: paid, description_first", l.Variant)
	}

	switch v {
	case post.VariantDescriptionFirst:
		setDefault(&l.MaxPhotos, 4)
		setDefault(&l.MinWords, 10)
	default:
		setDefault(&l.MaxPhotos, 8)
		setDefault(&l.MinWords, 1)
		if len(l.PriceTiers) == 0 {
			l.PriceTiers = append([]post.PriceTier(nil), post.DefaultPriceTiers...)
		}
		if err := post.ValidateTiers(l.PriceTiers); err != nil {
			return fmt.Errorf("listing.price_tiers: %w", err)
		}
	}
	if l.MaxPhotos > maxAlbumSize {
		return fmt.Errorf("listing.max_photos (%d) exceeds the Telegram album limit of %d", l.MaxPhotos, maxAlbumSize)
	}
	setDefault(&l.MaxWords, 500)
	if l.MinWords > l.MaxWords {
		return fmt.Errorf("listing.min_words (%d) exceeds listing.max_words (%d)", l.MinWords, l.MaxWords)
	}

	setDuration(&l.AlbumDebounce, 1500*time.Millisecond)
	setDuration(&l.NotifyDebounce, time.Second)
	setDuration(&l.AlbumStaleAfter, 5*time.Minute)
	setDuration(&l.AlbumSweepInterval, time.Minute)
	setDuration(&l.ExpireAfter, 24*time.Hour)
	setDuration(&l.SweepInterval, time.Minute)
	if l.AlbumStaleAfter <= l.AlbumDebounce {
		return fmt.Errorf("listing.album_stale_after must be longer than listing.album_debounce")
	}

	if l.ChannelID == 0 {
		return fmt.Errorf("listing.channel_id is required")
	}
	if l.IsModerated() && l.ModeratorChatID == 0 {
		return fmt.Errorf("listing.moderator_chat_id is required when listings are moderated")
	}
	return nil
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}
