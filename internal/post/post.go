package post

import (
	"context"
	"errors"
	"time"
)

// UnknownUser is shown when a post has no display name.
const UnknownUser = "Unknown user"

var (
	// ErrNotFound is returned when the post (or the active post) does not exist.
	ErrNotFound = errors.New("post not found")
	// ErrActivePost is returned when the submitter already has a non-terminal post.
	ErrActivePost = errors.New("submitter already has an active post")
	// ErrStageChanged is returned when a post left the stage an action was issued for.
	ErrStageChanged = errors.New("post stage changed")
	// ErrNoPhotos is returned when a post without photos is finished or submitted.
	ErrNoPhotos = errors.New("post has no photos")
	// ErrPhotoLimit is returned when photos would exceed the configured maximum.
	ErrPhotoLimit = errors.New("photo limit exceeded")
)

// Post is one submitter's listing.
type Post struct {
	ID          int64
	SubmitterID int64
	Stage       Stage
	// Photos are transport file references in the order they were received.
	Photos      []string
	Description string
	Receipt     string
	Price       string
	PriceText   string
	Username    string

	HasSentInstruction bool
	PhotosFinished     bool
	// PromptMessageID is the last bot prompt that the next step may replace.
	PromptMessageID int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the username or a placeholder when it is empty.
func (p *Post) DisplayName() string {
	if p.Username == "" {
		return UnknownUser
	}
	return p.Username
}

// Active reports whether the post still counts against the one-active-post rule.
func (p *Post) Active() bool {
	return !p.Stage.Terminal()
}

// AddPhotos appends refs when the result stays within max. The batch is all or nothing.
func (p *Post) AddPhotos(max int, refs ...string) error {
	if max > 0 && len(p.Photos)+len(refs) > max {
		return ErrPhotoLimit
	}
	p.Photos = append(p.Photos, refs...)
	return nil
}

// Expired identifies a post removed by the expiry sweep.
type Expired struct {
	PostID      int64 `db:"id"`
	SubmitterID int64 `db:"submitter_id"`
}

// Submitter is the stored profile of a chat user.
type Submitter struct {
	ID       int64
	Username string
}

// Store persists posts. Implementations must make Update fail with ErrNotFound
// when the row is gone so a stale writer cannot resurrect a deleted post.
type Store interface {
	// Create inserts p and fills ID and CreatedAt. It returns ErrActivePost when
	// the submitter already has a non-terminal post.
	Create(ctx context.Context, p *Post) error
	Update(ctx context.Context, p *Post) error
	Get(ctx context.Context, id int64) (*Post, error)
	// Active returns the submitter's non-terminal post or ErrNotFound.
	Active(ctx context.Context, submitterID int64) (*Post, error)
	ListBySubmitter(ctx context.Context, submitterID int64) ([]Post, error)
	// Delete removes a post unless it is published and reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	// DeleteExpired removes non-terminal posts created before cutoff in one statement.
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]Expired, error)
	UpsertSubmitter(ctx context.Context, s Submitter) error
}
