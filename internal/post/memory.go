package post

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. It applies the same invariants as the
// PostgreSQL store and backs unit tests of the flow packages.
type MemoryStore struct {
	mu         sync.Mutex
	nextID     int64
	posts      map[int64]Post
	submitters map[int64]Submitter
	now        func() time.Time
}

// NewMemoryStore returns an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		posts:      make(map[int64]Post),
		submitters: make(map[int64]Submitter),
		now:        now,
	}
}

func clonePost(p Post) *Post {
	p.Photos = append([]string(nil), p.Photos...)
	return &p
}

func (s *MemoryStore) Create(_ context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.posts {
		if existing.SubmitterID == p.SubmitterID && existing.Active() {
			return ErrActivePost
		}
	}
	s.nextID++
	p.ID = s.nextID
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.posts[p.ID] = *clonePost(*p)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = s.now()
	s.posts[p.ID] = *clonePost(*p)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *MemoryStore) Active(_ context.Context, submitterID int64) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.SubmitterID == submitterID && p.Active() {
			return clonePost(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListBySubmitter(_ context.Context, submitterID int64) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Post
	for _, p := range s.posts {
		if p.SubmitterID == submitterID {
			out = append(out, *clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Stage == StagePublished {
		return false, nil
	}
	delete(s.posts, id)
	return true, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) ([]Expired, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Expired
	for id, p := range s.posts {
		if p.Active() && p.CreatedAt.Before(cutoff) {
			out = append(out, Expired{PostID: id, SubmitterID: p.SubmitterID})
			delete(s.posts, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out, nil
}

func (s *MemoryStore) UpsertSubmitter(_ context.Context, sub Submitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitters[sub.ID] = sub
	return nil
}

// Submitter returns the stored profile.
func (s *MemoryStore) Submitter(id int64) (Submitter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submitters[id]
	return sub, ok
}

var _ Store = (*MemoryStore)(nil)
