// Package postgres stores posts in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
)

const uniqueViolation = "23505"

const postColumns = `id, submitter_id, stage, photos, description, receipt, price, price_text,
	username, has_sent_instruction, photos_finished, prompt_message_id, created_at, updated_at`

const activeFilter = `stage NOT IN ('published', 'rejected')`

// Store implements post.Store on top of sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New returns a Store using db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type postRow struct {
	ID                 int64          `db:"id"`
	SubmitterID        int64          `db:"submitter_id"`
	Stage              string         `db:"stage"`
	Photos             pq.StringArray `db:"photos"`
	Description        string         `db:"description"`
	Receipt            string         `db:"receipt"`
	Price              string         `db:"price"`
	PriceText          string         `db:"price_text"`
	Username           string         `db:"username"`
	HasSentInstruction bool           `db:"has_sent_instruction"`
	PhotosFinished     bool           `db:"photos_finished"`
	PromptMessageID    int            `db:"prompt_message_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func toRow(p *post.Post) postRow {
	photos := pq.StringArray(p.Photos)
	if photos == nil {
		photos = pq.StringArray{}
	}
	return postRow{
		ID:                 p.ID,
		SubmitterID:        p.SubmitterID,
		Stage:              string(p.Stage),
		Photos:             photos,
		Description:        p.Description,
		Receipt:            p.Receipt,
		Price:              p.Price,
		PriceText:          p.PriceText,
		Username:           p.Username,
		HasSentInstruction: p.HasSentInstruction,
		PhotosFinished:     p.PhotosFinished,
		PromptMessageID:    p.PromptMessageID,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (r postRow) toPost() *post.Post {
	return &post.Post{
		ID:                 r.ID,
		SubmitterID:        r.SubmitterID,
		Stage:              post.Stage(r.Stage),
		Photos:             []string(r.Photos),
		Description:        r.Description,
		Receipt:            r.Receipt,
		Price:              r.Price,
		PriceText:          r.PriceText,
		Username:           r.Username,
		HasSentInstruction: r.HasSentInstruction,
		PhotosFinished:     r.PhotosFinished,
		PromptMessageID:    r.PromptMessageID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func observe(ctx context.Context, op string, start time.Time, err error) {
	if err == nil {
		if logger.ShouldSampleDebug() {
			logger.DB.LogAttrs(ctx, slog.LevelDebug, "db.query",
				slog.String("op", op),
				slog.Duration("duration", logger.Took(start)),
			)
		}
		return
	}
	logger.DB.LogAttrs(ctx, slog.LevelWarn, "db.query",
		slog.String("op", op),
		slog.String("status", "error"),
		slog.Duration("duration", logger.Took(start)),
		slog.String("err", err.Error()),
	)
}

const insertPost = `INSERT INTO posts (submitter_id, stage, photos, description, receipt, price, price_text,
	username, has_sent_instruction, photos_finished, prompt_message_id, created_at, updated_at)
VALUES (:submitter_id, :stage, :photos, :description, :receipt, :price, :price_text,
	:username, :has_sent_instruction, :photos_finished, :prompt_message_id, :created_at, :updated_at)
RETURNING id`

// Create inserts p. The partial unique index turns a second active post into ErrActivePost.
func (s *Store) Create(ctx context.Context, p *post.Post) (err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.create", start, err) }()

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	query, args, err := sqlx.Named(insertPost, toRow(p))
	if err != nil {
		return fmt.Errorf("bind insert post: %w", err)
	}
	var id int64
	if err = s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return post.ErrActivePost
		}
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = id
	return nil
}

const updatePost = `UPDATE posts SET
	stage = :stage,
	photos = :photos,
	description = :description,
	receipt = :receipt,
	price = :price,
	price_text = :price_text,
	username = :username,
	has_sent_instruction = :has_sent_instruction,
	photos_finished = :photos_finished,
	prompt_message_id = :prompt_message_id,
	updated_at = :updated_at
WHERE id = :id`

// Update writes every mutable field of p in one statement.
func (s *Store) Update(ctx context.Context, p *post.Post) (err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.update", start, err) }()

	p.UpdatedAt = s.now().UTC()
	res, err := s.db.NamedExecContext(ctx, updatePost, toRow(p))
	if err != nil {
		if isUniqueViolation(err) {
			return post.ErrActivePost
		}
		return fmt.Errorf("update post %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post %d: %w", p.ID, err)
	}
	if n == 0 {
		return post.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (_ *post.Post, err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.get", start, ignoreNotFound(err)) }()

	var row postRow
	err = s.db.GetContext(ctx, &row, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return row.toPost(), nil
}

func (s *Store) Active(ctx context.Context, submitterID int64) (_ *post.Post, err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.active", start, ignoreNotFound(err)) }()

	var row postRow
	err = s.db.GetContext(ctx, &row,
		`SELECT `+postColumns+` FROM posts WHERE submitter_id = $1 AND `+activeFilter+`
		ORDER BY created_at DESC LIMIT 1`, submitterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active post of %d: %w", submitterID, err)
	}
	return row.toPost(), nil
}

func (s *Store) ListBySubmitter(ctx context.Context, submitterID int64) (_ []post.Post, err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.list", start, err) }()

	var rows []postRow
	if err = s.db.SelectContext(ctx, &rows,
		`SELECT `+postColumns+` FROM posts WHERE submitter_id = $1 ORDER BY id`, submitterID); err != nil {
		return nil, fmt.Errorf("list posts of %d: %w", submitterID, err)
	}
	out := make([]post.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toPost())
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (_ bool, err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.delete", start, err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND stage <> 'published'`, id)
	if err != nil {
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteExpired removes stale non-terminal posts and returns what was removed.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (_ []post.Expired, err error) {
	start := time.Now()
	defer func() { observe(ctx, "posts.delete_expired", start, err) }()

	var expired []post.Expired
	if err = s.db.SelectContext(ctx, &expired,
		`DELETE FROM posts WHERE `+activeFilter+` AND created_at < $1 RETURNING id, submitter_id`,
		cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("delete expired posts: %w", err)
	}
	return expired, nil
}

func (s *Store) UpsertSubmitter(ctx context.Context, sub post.Submitter) (err error) {
	start := time.Now()
	defer func() { observe(ctx, "submitters.upsert", start, err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submitters (id, username, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.Username, s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert submitter %d: %w", sub.ID, err)
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, post.ErrNotFound) {
		return nil
	}
	return err
}

var _ post.Store = (*Store)(nil)
