// Package account keeps the tokens an identity provider issued for a user,
// so the service can act on the provider account after the login.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jmartynas/social-login/internal/errs"
)

type Account struct {
	UserID    uuid.UUID
	Provider  string
	Token     *oauth2.Token
	UpdatedAt time.Time
}

type Repository struct {
	dbc dbresolver.DB
}

func NewRepository(dbc dbresolver.DB) *Repository {
	return &Repository{dbc: dbc}
}

// Save stores the provider tokens of a user. Providers often leave the
// refresh token out of later grants, so an empty one keeps the stored value.
func (r *Repository) Save(ctx context.Context, userID uuid.UUID, provider string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("account: access token is required")
	}
	if _, err := saveQuery(userID, provider, tok).RunWith(r.primary()).ExecContext(ctx); err != nil {
		return fmt.Errorf("save oauth2 account: %w", err)
	}
	return nil
}

// Get reads from the primary: tokens rotate on every refresh and a replica
// may still hold a revoked one.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Account, error) {
	var (
		a       Account
		refresh sql.NullString
		expiry  sql.NullTime
	)
	a.UserID = userID
	a.Token = &oauth2.Token{}
	err := selectQuery(userID).
		RunWith(r.primary()).
		QueryRowContext(ctx).
		Scan(&a.Provider, &a.Token.AccessToken, &refresh, &a.Token.TokenType, &expiry, &a.UpdatedAt)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		return nil, errs.ErrNotFound
	default:
		return nil, fmt.Errorf("get oauth2 account: %w", err)
	}
	a.Token.RefreshToken = refresh.String
	if expiry.Valid {
		a.Token.Expiry = expiry.Time
	}
	return &a, nil
}

func (r *Repository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := squirrel.Delete("oauth2_accounts").
		Where(squirrel.Eq{"user_id": userID.String()}).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete oauth2 account: %w", err)
	}
	return nil
}

func (r *Repository) primary() *sql.DB {
	return r.dbc.PrimaryDBs()[0]
}

func saveQuery(userID uuid.UUID, provider string, tok *oauth2.Token) squirrel.InsertBuilder {
	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC()
	}
	var refresh any
	if tok.RefreshToken != "" {
		refresh = tok.RefreshToken
	}
	return squirrel.Insert("oauth2_accounts").
		Columns("user_id", "provider", "access_token", "refresh_token", "token_type", "expiry").
		Values(userID.String(), provider, tok.AccessToken, refresh, tok.Type(), expiry).
		Suffix("ON DUPLICATE KEY UPDATE " +
			"access_token = VALUES(access_token), " +
			"refresh_token = COALESCE(VALUES(refresh_token), refresh_token), " +
			"token_type = VALUES(token_type), " +
			"expiry = VALUES(expiry)")
}

func selectQuery(userID uuid.UUID) squirrel.SelectBuilder {
	return squirrel.Select("provider", "access_token", "refresh_token", "token_type", "expiry", "updated_at").
		From("oauth2_accounts").
		Where(squirrel.Eq{"user_id": userID.String()}).
		Limit(1)
}
