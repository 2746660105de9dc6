package account

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jmartynas/social-login/internal/errs"
)

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
	return NewRepository(dbresolver.New(dbresolver.WithPrimaryDBs(primary), dbresolver.WithReplicaDBs(replica))), pmock
}

func TestSaveQuery(t *testing.T) {
	id := uuid.New()
	expiry := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	sql, args, err := saveQuery(id, "google", &oauth2.Token{AccessToken: "at", Expiry: expiry}).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	wantPrefix := "INSERT INTO oauth2_accounts (user_id,provider,access_token,refresh_token,token_type,expiry) VALUES (?,?,?,?,?,?)"
	if !strings.HasPrefix(sql, wantPrefix) {
		t.Errorf("sql = %q, want prefix %q", sql, wantPrefix)
	}
	if !strings.Contains(sql, "refresh_token = COALESCE(VALUES(refresh_token), refresh_token)") {
		t.Errorf("sql = %q, stored refresh token is overwritten", sql)
	}
	wantArgs := []any{id.String(), "google", "at", nil, "Bearer", expiry}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %#v, want %#v", args, wantArgs)
	}
}

func TestSave(t *testing.T) {
	repo, mock := newTestRepository(t)
	id := uuid.New()
	mock.ExpectExec("INSERT INTO oauth2_accounts").
		WithArgs(id.String(), "kakao", "at", "rt", "Bearer", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), id, "kakao", &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer"}); err != nil {
		t.Fatalf("Save() err = %v", err)
	}
	if err := repo.Save(context.Background(), id, "kakao", &oauth2.Token{}); err == nil {
		t.Error("Save() without access token succeeded")
	}
}

func TestGet(t *testing.T) {
	id := uuid.New()
	query := regexp.QuoteMeta("FROM oauth2_accounts WHERE user_id = ? LIMIT 1")
	columns := []string{"provider", "access_token", "refresh_token", "token_type", "expiry", "updated_at"}
	expiry := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		mock.ExpectQuery(query).WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(columns).AddRow("naver", "at", "rt", "Bearer", expiry, expiry))

		a, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() err = %v", err)
		}
		if a.Provider != "naver" || a.Token.AccessToken != "at" || a.Token.RefreshToken != "rt" || !a.Token.Expiry.Equal(expiry) {
			t.Errorf("Get() = %+v token %+v", a, a.Token)
		}
	})

	t.Run("no refresh token or expiry", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		mock.ExpectQuery(query).WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(columns).AddRow("kakao", "at", nil, "Bearer", nil, expiry))

		a, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() err = %v", err)
		}
		if a.Token.RefreshToken != "" || !a.Token.Expiry.IsZero() {
			t.Errorf("Get() token = %+v", a.Token)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		mock.ExpectQuery(query).WithArgs(id.String()).WillReturnRows(sqlmock.NewRows(columns))

		if _, err := repo.Get(context.Background(), id); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Get() err = %v, want ErrNotFound", err)
		}
	})
}

func TestDelete(t *testing.T) {
	repo, mock := newTestRepository(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM oauth2_accounts WHERE user_id = ?")).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), id); err != nil {
		t.Errorf("Delete() err = %v", err)
	}
}
