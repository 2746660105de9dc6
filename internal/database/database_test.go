package database

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jmartynas/social-login/internal/config"
	"github.com/jmartynas/social-login/internal/errs"
)

// fakeOpen makes Open hand out sqlmock databases, failing for DSNs that
// mention "down". When wantClose is set every database expects to be closed.
func fakeOpen(t *testing.T, wantClose bool) map[string]sqlmock.Sqlmock {
	t.Helper()
	mocks := make(map[string]sqlmock.Sqlmock)
	var dbs []*sql.DB
	openDB = func(dsn string, _ config.MySQLConfig) (*sql.DB, error) {
		if strings.Contains(dsn, "down") {
			return nil, errors.New("dial tcp: connection refused")
		}
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatal(err)
		}
		if wantClose {
			mock.ExpectClose()
		}
		mocks[dsn] = mock
		dbs = append(dbs, db)
		return db, nil
	}
	t.Cleanup(func() {
		openDB = open
		if !wantClose {
			closeAll(dbs)
		}
	})
	return mocks
}

func TestOpen_NoDSN(t *testing.T) {
	if _, err := Open(config.MySQLConfig{}); !errors.Is(err, errs.ErrDSNNotConfigured) {
		t.Errorf("Open() err = %v, want ErrDSNNotConfigured", err)
	}
}

func TestOpen_PrimaryAndReplicas(t *testing.T) {
	mocks := fakeOpen(t, false)
	dbc, err := Open(config.MySQLConfig{
		DSN:      "app:pw@tcp(primary:3306)/social",
		Replicas: []string{"app:pw@tcp(replica1:3306)/social", "app:pw@tcp(replica2:3306)/social"},
	})
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	if len(dbc.PrimaryDBs()) != 1 || len(dbc.ReplicaDBs()) != 2 {
		t.Errorf("primaries = %d, replicas = %d", len(dbc.PrimaryDBs()), len(dbc.ReplicaDBs()))
	}
	for dsn := range mocks {
		if !strings.Contains(dsn, "parseTime=true") {
			t.Errorf("dsn %q opened without driver options", dsn)
		}
	}
}

func TestOpen_ReplicaFailureClosesOpened(t *testing.T) {
	mocks := fakeOpen(t, true)
	_, err := Open(config.MySQLConfig{
		DSN: "app:pw@tcp(primary:3306)/social",
		Replicas: []string{
			"app:pw@tcp(replica1:3306)/social",
			"app:pw@tcp(replica2:3306)/social",
			"app:pw@tcp(down:3306)/social",
		},
	})
	if err == nil || !strings.Contains(err.Error(), "replica 2") {
		t.Fatalf("Open() err = %v, want replica 2 failure", err)
	}
	if len(mocks) != 3 {
		t.Fatalf("opened %d databases, want 3", len(mocks))
	}
	for dsn, mock := range mocks {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("%s not closed: %v", dsn, err)
		}
	}
}
