// Package expiry deletes posts that were not finished in time.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/prompt"
)

// Options configure the sweep.
type Options struct {
	// After is the age, from creation, at which an unfinished post expires.
	After    time.Duration
	Interval time.Duration
	Now      func() time.Time
	// OnExpired runs for every removed post after its submitter was notified.
	OnExpired func(post.Expired)
}

// Sweeper periodically removes expired posts and tells their submitters.
type Sweeper struct {
	store post.Store
	msg   chat.Messenger
	opts  Options
	log   *slog.Logger
}

// New returns a Sweeper. Zero durations fall back to one day and one minute.
func New(store post.Store, msg chat.Messenger, opts Options) *Sweeper {
	if opts.After <= 0 {
		opts.After = 24 * time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{store: store, msg: msg, opts: opts, log: logger.SVCExpiry}
}

// Run sweeps once immediately, then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.LogAttrs(ctx, slog.LevelError, "expiry.sweep",
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
	}
}

// Result summarizes one sweep.
type Result struct {
	Expired  int
	Notified int
}

// RunOnce deletes expired posts in one statement and notifies each submitter.
// A failed notification is logged and not retried: the row is already gone.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	cutoff := s.opts.Now().Add(-s.opts.After)
	expired, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}
	res := Result{Expired: len(expired)}
	for _, e := range expired {
		if err := s.msg.Notify(ctx, e.SubmitterID, prompt.Expired); err != nil {
			s.log.LogAttrs(ctx, slog.LevelWarn, "expiry.notify",
				slog.Int64("post_id", e.PostID),
				slog.Int64("user_id", e.SubmitterID),
				slog.String("status", "error"),
				slog.String("err", err.Error()),
			)
		} else {
			res.Notified++
		}
		if s.opts.OnExpired != nil {
			s.opts.OnExpired(e)
		}
	}
	level := slog.LevelDebug
	if res.Expired > 0 {
		level = slog.LevelInfo
	}
	s.log.LogAttrs(ctx, level, "expiry.sweep",
		slog.Int("expired", res.Expired),
		slog.Int("notified", res.Notified),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}
