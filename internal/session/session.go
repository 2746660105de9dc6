// Package session records refresh-token sessions so that a refresh token can
// be revoked before it expires.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"

	"github.com/jmartynas/social-login/internal/errs"
)

type Repository struct {
	dbc dbresolver.DB
	now func() time.Time
}

func NewRepository(dbc dbresolver.DB) *Repository {
	return &Repository{dbc: dbc, now: time.Now}
}

// Create records the session named by a refresh token's id.
func (r *Repository) Create(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) error {
	_, err := squirrel.Insert("sessions").
		Columns("id", "user_id", "expires_at").
		Values(id.String(), userID.String(), expiresAt.UTC()).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Consume deletes a live session and reports errs.ErrNotFound when there was
// none, so a refresh token can be redeemed only once.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID) error {
	res, err := squirrel.Delete("sessions").
		Where(squirrel.Eq{"id": id.String()}).
		Where(squirrel.Gt{"expires_at": r.now().UTC()}).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("consume session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume session rows: %w", err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := squirrel.Delete("sessions").
		Where(squirrel.Eq{"id": id.String()}).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUser ends every session of a user.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := squirrel.Delete("sessions").
		Where(squirrel.Eq{"user_id": userID.String()}).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (r *Repository) primary() *sql.DB {
	return r.dbc.PrimaryDBs()[0]
}
