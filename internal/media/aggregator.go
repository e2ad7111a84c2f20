// Package media batches album photos that Telegram delivers as separate updates.
package media

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
)

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. The default is time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Handler receives the aggregator's deferred events. Both run on timer goroutines
// and must re-read the post before acting.
type Handler interface {
	// FlushGroup is called once the album went quiet; the handler claims it with Claim.
	FlushGroup(ctx context.Context, submitterID int64, groupID string)
	// PhotosSettled is called once single photos stopped arriving.
	PhotosSettled(ctx context.Context, submitterID int64)
}

// Options configure debounce windows and the stale reaper.
type Options struct {
	// AlbumDebounce is re-armed on every album member.
	AlbumDebounce time.Duration
	// NoticeDebounce coalesces single photos into one notice.
	NoticeDebounce time.Duration
	// StaleAfter is the absolute age after which a batch entry is dropped.
	StaleAfter    time.Duration
	SweepInterval time.Duration

	Scheduler Scheduler
	Now       func() time.Time
}

func (o *Options) normalize() {
	if o.AlbumDebounce <= 0 {
		o.AlbumDebounce = 1500 * time.Millisecond
	}
	if o.NoticeDebounce <= 0 {
		o.NoticeDebounce = time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.Scheduler == nil {
		o.Scheduler = clockScheduler{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Batch is a claimed album.
type Batch struct {
	SubmitterID int64
	GroupID     string
	Photos      []string
	FirstSeen   time.Time
}

type batchKey struct {
	submitterID int64
	groupID     string
}

type batch struct {
	Batch
	ctx       context.Context
	timer     Timer
	gen       uint64
	processed bool
}

type notice struct {
	timer Timer
	gen   uint64
}

// Aggregator owns the in-memory album table. Albums are lost on restart.
type Aggregator struct {
	opts    Options
	handler Handler
	log     *slog.Logger

	mu      sync.Mutex
	gen     uint64
	batches map[batchKey]*batch
	notices map[int64]*notice
}

// New returns an Aggregator delivering events to h.
func New(opts Options, h Handler) *Aggregator {
	opts.normalize()
	return &Aggregator{
		opts:    opts,
		handler: h,
		log:     logger.SVCMedia,
		batches: make(map[batchKey]*batch),
		notices: make(map[int64]*notice),
	}
}

// Add appends ref to the submitter's album and re-arms its debounce timer.
// It reports false when the album was already flushed; such late members are ignored.
func (a *Aggregator) Add(ctx context.Context, submitterID int64, groupID, ref string) bool {
	k := batchKey{submitterID, groupID}
	a.mu.Lock()
	b, ok := a.batches[k]
	if ok && b.processed {
		a.mu.Unlock()
		logger.LogEvent(ctx, a.log, slog.LevelDebug, "album.late_member",
			slog.String("group_id", groupID),
			slog.String("status", "skip"),
		)
		return false
	}
	if !ok {
		b = &batch{Batch: Batch{SubmitterID: submitterID, GroupID: groupID, FirstSeen: a.opts.Now()}}
		a.batches[k] = b
	}
	b.Photos = append(b.Photos, ref)
	b.ctx = logger.Detach(ctx)
	if b.timer != nil {
		b.timer.Stop()
	}
	a.gen++
	gen := a.gen
	b.gen = gen
	b.timer = a.opts.Scheduler.AfterFunc(a.opts.AlbumDebounce, func() { a.fire(k, gen) })
	size := len(b.Photos)
	a.mu.Unlock()

	logger.LogEvent(ctx, a.log, slog.LevelDebug, "album.add",
		slog.String("group_id", groupID),
		slog.Int("batch", size),
	)
	return true
}

func (a *Aggregator) fire(k batchKey, gen uint64) {
	a.mu.Lock()
	b, ok := a.batches[k]
	if !ok || b.processed || b.gen != gen {
		a.mu.Unlock()
		return
	}
	ctx := b.ctx
	a.mu.Unlock()
	a.handler.FlushGroup(ctx, k.submitterID, k.groupID)
}

// Claim marks the album processed and returns its photos. It reports false when
// the album is unknown or was claimed already. The entry stays as a tombstone
// until the reaper removes it.
func (a *Aggregator) Claim(submitterID int64, groupID string) (Batch, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.batches[batchKey{submitterID, groupID}]
	if !ok || b.processed {
		return Batch{}, false
	}
	return a.claimLocked(b), true
}

func (a *Aggregator) claimLocked(b *batch) Batch {
	b.processed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	out := b.Batch
	out.Photos = append([]string(nil), b.Photos...)
	b.Photos = nil
	return out
}

// Drain claims every pending album of the submitter, oldest first.
func (a *Aggregator) Drain(submitterID int64) []Batch {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Batch
	for k, b := range a.batches {
		if k.submitterID != submitterID || b.processed {
			continue
		}
		out = append(out, a.claimLocked(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

// Pending returns the number of unclaimed albums of the submitter.
func (a *Aggregator) Pending(submitterID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for k, b := range a.batches {
		if k.submitterID == submitterID && !b.processed {
			n++
		}
	}
	return n
}

// ScheduleNotice (re)arms the single-photo notice for the submitter.
func (a *Aggregator) ScheduleNotice(ctx context.Context, submitterID int64) {
	detached := logger.Detach(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.notices[submitterID]
	if !ok {
		n = &notice{}
		a.notices[submitterID] = n
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	a.gen++
	gen := a.gen
	n.gen = gen
	n.timer = a.opts.Scheduler.AfterFunc(a.opts.NoticeDebounce, func() {
		a.mu.Lock()
		cur, ok := a.notices[submitterID]
		if !ok || cur.gen != gen {
			a.mu.Unlock()
			return
		}
		delete(a.notices, submitterID)
		a.mu.Unlock()
		a.handler.PhotosSettled(detached, submitterID)
	})
}

// CancelNotice drops a pending single-photo notice.
func (a *Aggregator) CancelNotice(submitterID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.notices[submitterID]; ok {
		if n.timer != nil {
			n.timer.Stop()
		}
		delete(a.notices, submitterID)
	}
}

// Forget drops every album and notice of the submitter.
func (a *Aggregator) Forget(submitterID int64) {
	a.mu.Lock()
	for k, b := range a.batches {
		if k.submitterID == submitterID {
			if b.timer != nil {
				b.timer.Stop()
			}
			delete(a.batches, k)
		}
	}
	a.mu.Unlock()
	a.CancelNotice(submitterID)
}

// Reap removes album entries older than StaleAfter, flushed or not.
func (a *Aggregator) Reap() int {
	cutoff := a.opts.Now().Add(-a.opts.StaleAfter)
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for k, b := range a.batches {
		if b.FirstSeen.After(cutoff) {
			continue
		}
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(a.batches, k)
		removed++
	}
	return removed
}

// Run reaps stale entries every SweepInterval until ctx is done.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Close()
			return
		case <-ticker.C:
			if n := a.Reap(); n > 0 {
				a.log.LogAttrs(ctx, slog.LevelDebug, "album.reap",
					slog.Int("batch", n),
				)
			}
		}
	}
}

// Close stops all timers and clears the table.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, b := range a.batches {
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(a.batches, k)
	}
	for id, n := range a.notices {
		if n.timer != nil {
			n.timer.Stop()
		}
		delete(a.notices, id)
	}
}
