package errs

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound           = sql.ErrNoRows
	ErrUnknownProvider    = errors.New("oauth2: unknown provider")
	ErrInvalidEndpoint    = errors.New("endpoints: base URL and redirect URI must be absolute URLs")
	ErrSecretRequired     = errors.New("auth: secret is required")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
	ErrDSNNotConfigured   = errors.New("mysql: DSN not configured (set SOCIAL_MYSQL_DSN)")
	ErrStateNotFound      = errors.New("oauth2: authorization request not found or expired")
	ErrRedirectNotAllowed = errors.New("oauth2: redirect_uri is not authorized")
)
