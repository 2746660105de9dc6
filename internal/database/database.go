package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	_ "github.com/go-sql-driver/mysql"

	"github.com/jmartynas/social-login/internal/config"
	"github.com/jmartynas/social-login/internal/errs"
)

const pingTimeout = 5 * time.Second

// openDB is replaced in tests.
var openDB = open

// Open connects to the primary and every replica and returns a resolver
// that sends writes to the primary and reads round-robin to the replicas.
// When any connection fails, the ones already opened are closed.
func Open(cfg config.MySQLConfig) (dbresolver.DB, error) {
	dsn := cfg.DSNWithOptions()
	if dsn == "" {
		return nil, errs.ErrDSNNotConfigured
	}

	primary, err := openDB(dsn, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	opened := []*sql.DB{primary}
	opts := []dbresolver.OptionFunc{
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	}

	for i, replicaDSN := range cfg.Replicas {
		replica, err := openDB(config.WithDSNOptions(replicaDSN), cfg)
		if err != nil {
			closeAll(opened)
			return nil, fmt.Errorf("replica %d: %w", i, err)
		}
		opened = append(opened, replica)
		opts = append(opts, dbresolver.WithReplicaDBs(replica))
	}

	return dbresolver.New(opts...), nil
}

func closeAll(dbs []*sql.DB) {
	for _, db := range dbs {
		_ = db.Close()
	}
}

func open(dsn string, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxIdleConns(maxIdle)
	connLife := cfg.ConnMaxLifetime
	if connLife <= 0 {
		connLife = 5 * time.Minute
	}
	db.SetConnMaxLifetime(connLife)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return db, nil
}
