// Package endpoints holds the API base URL, the frontend redirect URI and the
// per-provider authorization URLs derived from them.
package endpoints

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jmartynas/social-login/internal/errs"
)

const (
	DefaultAPIBaseURL  = "http://localhost:8080/api"
	DefaultRedirectURI = "http://localhost:3000/oauth2/callback"

	authorizePath = "/oauth2/authorize/"
	callbackPath  = "/oauth2/callback/"
)

type Provider int

const (
	Google Provider = iota
	Naver
	Kakao

	providerCount
)

var providerNames = [providerCount]string{
	Google: "google",
	Naver:  "naver",
	Kakao:  "kakao",
}

// Providers returns every supported provider.
func Providers() []Provider {
	return []Provider{Google, Naver, Kakao}
}

func (p Provider) Valid() bool {
	return p >= 0 && p < providerCount
}

func (p Provider) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Provider(%d)", int(p))
	}
	return providerNames[p]
}

// ParseProvider resolves a provider by its lowercase identifier.
func ParseProvider(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range providerNames {
		if n == name {
			return Provider(p), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errs.ErrUnknownProvider, name)
}

// Endpoints is built once at startup and never mutated afterwards, so a
// single value can be shared by any number of goroutines.
type Endpoints struct {
	apiBaseURL  string
	redirectURI string
	authURLs    [providerCount]string
}

// Default returns the endpoints for a local development setup.
func Default() *Endpoints {
	e, err := New(DefaultAPIBaseURL, DefaultRedirectURI)
	if err != nil {
		panic(err)
	}
	return e
}

// New precomputes the authorization URL for every provider. Both values are
// used verbatim: the redirect URI is not percent-encoded when embedded in
// the query string.
func New(apiBaseURL, redirectURI string) (*Endpoints, error) {
	if !absolute(apiBaseURL) {
		return nil, fmt.Errorf("%w: api base URL %q", errs.ErrInvalidEndpoint, apiBaseURL)
	}
	if !absolute(redirectURI) {
		return nil, fmt.Errorf("%w: redirect URI %q", errs.ErrInvalidEndpoint, redirectURI)
	}

	e := &Endpoints{
		apiBaseURL:  apiBaseURL,
		redirectURI: redirectURI,
	}
	for _, p := range Providers() {
		e.authURLs[p] = apiBaseURL + authorizePath + p.String() + "?redirect_uri=" + redirectURI
	}
	return e, nil
}

func (e *Endpoints) APIBaseURL() string {
	return e.apiBaseURL
}

func (e *Endpoints) RedirectURI() string {
	return e.redirectURI
}

// AuthURL returns the URL a browser is sent to in order to start a login
// with p.
func (e *Endpoints) AuthURL(p Provider) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: %s", errs.ErrUnknownProvider, p)
	}
	return e.authURLs[p], nil
}

// CallbackURL is the redirect URL registered with the identity provider.
func (e *Endpoints) CallbackURL(p Provider) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: %s", errs.ErrUnknownProvider, p)
	}
	return e.apiBaseURL + callbackPath + p.String(), nil
}

// BasePath is the path component of the API base URL, e.g. "/api".
func (e *Endpoints) BasePath() string {
	u, err := url.Parse(e.apiBaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

func absolute(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
