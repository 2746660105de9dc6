package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"

	"github.com/jmartynas/social-login/internal/errs"
)

// newTestRepository returns a repository over a primary and a replica. The
// replica expects nothing, so any query routed to it fails the test.
func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	primary, pmock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	replica, rmock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := pmock.ExpectationsWereMet(); err != nil {
			t.Errorf("primary: %v", err)
		}
		if err := rmock.ExpectationsWereMet(); err != nil {
			t.Errorf("replica: %v", err)
		}
		_ = primary.Close()
		_ = replica.Close()
	})
	dbc := dbresolver.New(dbresolver.WithPrimaryDBs(primary), dbresolver.WithReplicaDBs(replica))
	return NewRepository(dbc), pmock
}

func TestCreate(t *testing.T) {
	repo, mock := newTestRepository(t)
	id, userID := uuid.New(), uuid.New()
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id,user_id,expires_at) VALUES (?,?,?)")).
		WithArgs(id.String(), userID.String(), expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), id, userID, expires); err != nil {
		t.Fatalf("Create() err = %v", err)
	}
}

func TestConsume(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	query := regexp.QuoteMeta("DELETE FROM sessions WHERE id = ? AND expires_at > ?")
	tests := []struct {
		name     string
		affected int64
		want     error
	}{
		{"live session", 1, nil},
		{"missing or expired", 0, errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestRepository(t)
			repo.now = func() time.Time { return now }
			id := uuid.New()
			mock.ExpectExec(query).
				WithArgs(id.String(), now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			if err := repo.Consume(context.Background(), id); !errors.Is(err, tt.want) {
				t.Errorf("Consume() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConsume_DatabaseError(t *testing.T) {
	repo, mock := newTestRepository(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("DELETE FROM sessions").WillReturnError(boom)

	err := repo.Consume(context.Background(), uuid.New())
	if !errors.Is(err, boom) || errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Consume() err = %v, want wrapped %v", err, boom)
	}
}

func TestDelete(t *testing.T) {
	repo, mock := newTestRepository(t)
	id, userID := uuid.New(), uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = ?")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE user_id = ?")).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Errorf("Delete() err = %v", err)
	}
	if err := repo.DeleteByUser(context.Background(), userID); err != nil {
		t.Errorf("DeleteByUser() err = %v", err)
	}
}
