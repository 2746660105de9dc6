package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jmartynas/social-login/internal/errs"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	KindAccess  = "access"
	KindRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	Kind     string `json:"typ"`
	Provider string `json:"provider,omitempty"`
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", errs.ErrInvalidToken)
	}
	return id, nil
}

// SessionID returns the token id, which names the server-side session of a
// refresh token.
func (c *Claims) SessionID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: token id is not a session id", errs.ErrInvalidToken)
	}
	return id, nil
}

type TokenIssuer struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(key []byte, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, errs.ErrSecretRequired
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		key:        key,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

func (t *TokenIssuer) IssueAccess(userID uuid.UUID, provider string) (string, error) {
	token, _, err := t.issue(userID, provider, KindAccess, t.accessTTL)
	return token, err
}

// IssueRefresh returns the signed refresh token together with its claims so
// the caller can record the session it names.
func (t *TokenIssuer) IssueRefresh(userID uuid.UUID, provider string) (string, *Claims, error) {
	return t.issue(userID, provider, KindRefresh, t.refreshTTL)
}

func (t *TokenIssuer) issue(userID uuid.UUID, provider, kind string, ttl time.Duration) (string, *Claims, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:     kind,
		Provider: provider,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, &claims, nil
}

// Parse validates a token and checks that it is of the given kind.
func (t *TokenIssuer) Parse(token, kind string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", errs.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Kind != kind {
		return nil, errs.ErrInvalidToken
	}
	return &claims, nil
}
