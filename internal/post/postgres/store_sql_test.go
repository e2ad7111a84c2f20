package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	s := New(sqlx.NewDb(db, "postgres"))
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestCreateReturnsGeneratedID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts (submitter_id, stage, photos,") + `.*` + regexp.QuoteMeta("RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	p := &post.Post{SubmitterID: 42, Stage: post.StageAwaitingBookCount}
	if err := s.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 17 || !p.CreatedAt.Equal(fixedNow) || !p.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("post after create = %+v", p)
	}
}

func TestCreateMapsUniqueViolationToActivePost(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "posts_one_active_per_submitter"})

	err := s.Create(context.Background(), &post.Post{SubmitterID: 42, Stage: post.StageAwaitingPhotos})
	if !errors.Is(err, post.ErrActivePost) {
		t.Fatalf("err = %v, want ErrActivePost", err)
	}
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts")).
		WillReturnError(&pq.Error{Code: "23502"})

	err := s.Create(context.Background(), &post.Post{SubmitterID: 42})
	if err == nil || errors.Is(err, post.ErrActivePost) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateWithoutMatchingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET") + `.*` + regexp.QuoteMeta("WHERE id = $12")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), &post.Post{ID: 9, Stage: post.StagePublished})
	if !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &post.Post{ID: 9, Stage: post.StageAwaitingModeration}
	if err := s.Update(context.Background(), p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !p.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("updated_at = %v", p.UpdatedAt)
	}
}

func TestDeleteSparesPublishedPosts(t *testing.T) {
	s, mock := newMockStore(t)
	stmt := regexp.QuoteMeta("DELETE FROM posts WHERE id = $1 AND stage <> 'published'")
	mock.ExpectExec(stmt).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(stmt).WithArgs(int64(6)).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	deleted, err := s.Delete(ctx, 5)
	if err != nil || deleted {
		t.Fatalf("published post: deleted=%v err=%v", deleted, err)
	}
	deleted, err = s.Delete(ctx, 6)
	if err != nil || !deleted {
		t.Fatalf("draft post: deleted=%v err=%v", deleted, err)
	}
}

func TestDeleteExpiredScansReturnedRows(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		"DELETE FROM posts WHERE stage NOT IN ('published', 'rejected') AND created_at < $1 RETURNING id, submitter_id")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "submitter_id"}).
			AddRow(int64(3), int64(42)).
			AddRow(int64(4), int64(43)))

	got, err := s.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	want := []post.Expired{{PostID: 3, SubmitterID: 42}, {PostID: 4, SubmitterID: 43}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expired = %+v, want %+v", got, want)
	}
}

func TestUpsertSubmitterOverwritesUsername(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submitters (id, username, updated_at)")+`.*`+
		regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username")).
		WithArgs(int64(42), "@reader", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpsertSubmitter(context.Background(), post.Submitter{ID: 42, Username: "@reader"}); err != nil {
		t.Fatalf("UpsertSubmitter: %v", err)
	}
}
