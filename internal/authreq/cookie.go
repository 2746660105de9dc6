package authreq

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/jmartynas/social-login/internal/errs"
)

const sessionName = "oauth2_auth_request"

// CookieStore keeps the authorization request in a signed and encrypted
// browser cookie, so no server-side state is needed.
type CookieStore struct {
	store *sessions.CookieStore
}

func NewCookieStore(hashKey, blockKey []byte, secure bool) *CookieStore {
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieStore{store: store}
}

func (c *CookieStore) Save(w http.ResponseWriter, r *http.Request, req Request) error {
	session, err := c.store.New(r, sessionName)
	if err != nil && session == nil {
		return fmt.Errorf("new auth request session: %w", err)
	}
	session.Values["state"] = req.State
	session.Values["provider"] = req.Provider
	session.Values["redirect_uri"] = req.RedirectURI
	session.Values["created_at"] = req.CreatedAt.Unix()
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save auth request session: %w", err)
	}
	return nil
}

func (c *CookieStore) Take(w http.ResponseWriter, r *http.Request, state string) (*Request, error) {
	session, err := c.store.Get(r, sessionName)
	if err != nil || session.IsNew {
		return nil, errs.ErrStateNotFound
	}

	stored, _ := session.Values["state"].(string)
	if stored == "" || stored != state {
		return nil, errs.ErrStateNotFound
	}
	req := &Request{State: stored}
	req.Provider, _ = session.Values["provider"].(string)
	req.RedirectURI, _ = session.Values["redirect_uri"].(string)
	if ts, ok := session.Values["created_at"].(int64); ok {
		req.CreatedAt = time.Unix(ts, 0)
	}

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("clear auth request session: %w", err)
	}
	if expired(req, time.Now()) {
		return nil, errs.ErrStateNotFound
	}
	return req, nil
}
