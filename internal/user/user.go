package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/google/uuid"

	"github.com/jmartynas/social-login/internal/auth"
	"github.com/jmartynas/social-login/internal/errs"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"imageUrl"`
	Provider    string    `json:"provider"`
	ProviderSub string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Repository struct {
	dbc dbresolver.DB
}

func NewRepository(dbc dbresolver.DB) *Repository {
	return &Repository{dbc: dbc}
}

// Upsert stores the profile of a provider account and returns the id of the
// user it belongs to. A returning account keeps its id; its profile fields
// are refreshed. The id is read back from the primary, which replicas may
// still lag behind.
func (r *Repository) Upsert(ctx context.Context, provider string, info auth.UserInfo) (uuid.UUID, error) {
	if info.ID == "" {
		return uuid.Nil, errors.New("user: provider subject is required")
	}
	primary := r.primary()

	if _, err := upsertQuery(uuid.New(), provider, info).RunWith(primary).ExecContext(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("user upsert: %w", err)
	}

	var idStr string
	if err := selectIDQuery(provider, info.ID).
		RunWith(primary).
		QueryRowContext(ctx).
		Scan(&idStr); err != nil {
		return uuid.Nil, fmt.Errorf("user upsert select id: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user upsert parse id %q: %w", idStr, err)
	}
	return id, nil
}

// GetByID reads from a replica. A user a replica does not know yet, such as
// one created by a login a moment ago, is looked up again on the primary.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := getByID(ctx, r.dbc, id)
	if errors.Is(err, errs.ErrNotFound) && len(r.dbc.ReplicaDBs()) > 0 {
		u, err = getByID(ctx, r.primary(), id)
	}
	return u, err
}

// Delete removes a user. Deleting a missing user is not an error.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := squirrel.Delete("users").
		Where(squirrel.Eq{"id": id.String()}).
		RunWith(r.primary()).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (r *Repository) primary() *sql.DB {
	return r.dbc.PrimaryDBs()[0]
}

func getByID(ctx context.Context, runner squirrel.BaseRunner, id uuid.UUID) (*User, error) {
	var u User
	var idStr string
	err := selectByIDQuery(id).
		RunWith(runner).
		QueryRowContext(ctx).
		Scan(&idStr, &u.Email, &u.Name, &u.ImageURL, &u.Provider, &u.ProviderSub, &u.CreatedAt)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		return nil, errs.ErrNotFound
	default:
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	u.ID, _ = uuid.Parse(idStr)
	return &u, nil
}

func upsertQuery(id uuid.UUID, provider string, info auth.UserInfo) squirrel.InsertBuilder {
	return squirrel.Insert("users").
		SetMap(map[string]any{
			"id":           id.String(),
			"email":        nullStr(info.Email),
			"name":         nullStr(info.Name),
			"image_url":    nullStr(info.ImageURL),
			"provider":     provider,
			"provider_sub": info.ID,
		}).
		Suffix("ON DUPLICATE KEY UPDATE " +
			"email = COALESCE(VALUES(email), email), " +
			"name = COALESCE(VALUES(name), name), " +
			"image_url = COALESCE(VALUES(image_url), image_url)")
}

func selectIDQuery(provider, sub string) squirrel.SelectBuilder {
	return squirrel.Select("id").
		From("users").
		Where(squirrel.Eq{"provider": provider, "provider_sub": sub}).
		Limit(1)
}

func selectByIDQuery(id uuid.UUID) squirrel.SelectBuilder {
	return squirrel.Select(
		"id",
		"COALESCE(email, '')",
		"COALESCE(name, '')",
		"COALESCE(image_url, '')",
		"provider",
		"provider_sub",
		"created_at",
	).
		From("users").
		Where(squirrel.Eq{"id": id.String()}).
		Limit(1)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
