// Package authreq persists in-flight OAuth2 authorization requests between
// the authorize redirect and the provider callback.
package authreq

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// MaxAge bounds how long a user may take at the provider's consent screen.
const MaxAge = 600 * time.Second

type Request struct {
	State       string    `json:"state"`
	Provider    string    `json:"provider"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store saves a request and hands it back exactly once.
type Store interface {
	Save(w http.ResponseWriter, r *http.Request, req Request) error
	// Take returns the request saved under state and removes it. It fails
	// with errs.ErrStateNotFound when nothing (or something expired) is
	// stored.
	Take(w http.ResponseWriter, r *http.Request, state string) (*Request, error)
}

func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func expired(req *Request, now time.Time) bool {
	return !req.CreatedAt.IsZero() && now.Sub(req.CreatedAt) > MaxAge
}
