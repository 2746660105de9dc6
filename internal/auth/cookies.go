package auth

import (
	"net/http"
	"time"

	"github.com/jmartynas/social-login/internal/errs"
)

const RefreshCookie = "refresh_token"

func SetRefreshTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func GetRefreshToken(r *http.Request) (string, error) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c == nil || c.Value == "" {
		return "", errs.ErrInvalidToken
	}
	return c.Value, nil
}

func ClearRefreshToken(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
