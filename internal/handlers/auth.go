package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/jmartynas/social-login/internal/account"
	"github.com/jmartynas/social-login/internal/auth"
	"github.com/jmartynas/social-login/internal/authreq"
	"github.com/jmartynas/social-login/internal/endpoints"
	"github.com/jmartynas/social-login/internal/errs"
	"github.com/jmartynas/social-login/internal/metrics"
	"github.com/jmartynas/social-login/internal/middleware"
	"github.com/jmartynas/social-login/internal/user"
	"github.com/jmartynas/social-login/respond"
)

const maxUserInfoBytes = 1 << 20

type UserStore interface {
	Upsert(ctx context.Context, provider string, info auth.UserInfo) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore tracks the refresh tokens that are still redeemable.
type SessionStore interface {
	Create(ctx context.Context, id, userID uuid.UUID, expiresAt time.Time) error
	Consume(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// AccountStore keeps the tokens providers issued at login.
type AccountStore interface {
	Save(ctx context.Context, userID uuid.UUID, provider string, tok *oauth2.Token) error
	Get(ctx context.Context, userID uuid.UUID) (*account.Account, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type AuthHandler struct {
	Endpoints        *endpoints.Endpoints
	Providers        map[endpoints.Provider]auth.Credentials
	Specs            map[endpoints.Provider]auth.ProviderSpec
	AllowedRedirects []string
	Requests         authreq.Store
	Users            UserStore
	Sessions         SessionStore
	Accounts         AccountStore
	Tokens           *auth.TokenIssuer
	Metrics          *metrics.Metrics
	Log              logrus.FieldLogger
	Secure           bool
	HTTPClient       *http.Client
}

// Authorize starts a login: it remembers where the browser wants to land
// and sends it to the provider's consent page.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	p, cfg, apiErr := h.provider(r)
	if apiErr != nil {
		apiErr.Respond(w)
		return
	}

	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = h.Endpoints.RedirectURI()
	}
	if !slices.Contains(h.AllowedRedirects, redirectURI) {
		h.Log.WithFields(logrus.Fields{
			"provider":     p.String(),
			"redirect_uri": redirectURI,
		}).Warn("rejected authorization request")
		respond.BadRequest(errs.ErrRedirectNotAllowed.Error()).Respond(w)
		return
	}

	state, err := authreq.NewState()
	if err != nil {
		h.Log.WithError(err).Error("generating oauth2 state")
		respond.InternalServerError("internal error").Respond(w)
		return
	}
	req := authreq.Request{
		State:       state,
		Provider:    p.String(),
		RedirectURI: redirectURI,
		CreatedAt:   time.Now(),
	}
	if err := h.Requests.Save(w, r, req); err != nil {
		h.Log.WithError(err).Error("saving authorization request")
		respond.InternalServerError("internal error").Respond(w)
		return
	}

	var opts []oauth2.AuthCodeOption
	if p == endpoints.Google {
		opts = append(opts,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		)
	}
	h.Metrics.Authorize(p.String())
	http.Redirect(w, r, cfg.AuthCodeURL(state, opts...), http.StatusFound)
}

// Callback finishes a login started by Authorize. Failures after the
// authorization request is known are reported to the frontend through an
// error query parameter rather than an error page.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	p, cfg, apiErr := h.provider(r)
	if apiErr != nil {
		apiErr.Respond(w)
		return
	}
	log := h.Log.WithField("provider", p.String())
	q := r.URL.Query()

	req, err := h.Requests.Take(w, r, q.Get("state"))
	if err != nil {
		log.WithError(err).Warn("callback without a matching authorization request")
		h.fail(w, r, p, h.Endpoints.RedirectURI(), "invalid_state", metrics.ResultError)
		return
	}
	if req.Provider != p.String() {
		log.WithField("expected", req.Provider).Warn("callback provider mismatch")
		h.fail(w, r, p, req.RedirectURI, "invalid_state", metrics.ResultError)
		return
	}
	if e := q.Get("error"); e != "" {
		log.WithField("error", e).Info("user did not authorize")
		h.fail(w, r, p, req.RedirectURI, e, metrics.ResultDenied)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.fail(w, r, p, req.RedirectURI, "missing_code", metrics.ResultError)
		return
	}

	ctx := h.oauthContext(r.Context())
	// Naver rejects a code exchange that does not repeat the state.
	tok, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("state", req.State))
	if err != nil {
		log.WithError(err).Error("oauth2 exchange")
		h.fail(w, r, p, req.RedirectURI, "exchange_failed", metrics.ResultError)
		return
	}

	info, err := h.fetchUserInfo(ctx, cfg, tok, p)
	if err != nil {
		log.WithError(err).Error("fetching user info")
		h.fail(w, r, p, req.RedirectURI, "user_info_failed", metrics.ResultError)
		return
	}

	userID, err := h.Users.Upsert(ctx, p.String(), *info)
	if err != nil {
		log.WithError(err).Error("user upsert")
		h.fail(w, r, p, req.RedirectURI, "server_error", metrics.ResultError)
		return
	}
	if err := h.Accounts.Save(ctx, userID, p.String(), tok); err != nil {
		log.WithError(err).Error("saving provider tokens")
		h.fail(w, r, p, req.RedirectURI, "server_error", metrics.ResultError)
		return
	}

	access, err := h.Tokens.IssueAccess(userID, p.String())
	if err != nil {
		log.WithError(err).Error("issuing access token")
		h.fail(w, r, p, req.RedirectURI, "server_error", metrics.ResultError)
		return
	}
	if err := h.startSession(ctx, w, userID, p.String()); err != nil {
		log.WithError(err).Error("starting session")
		h.fail(w, r, p, req.RedirectURI, "server_error", metrics.ResultError)
		return
	}

	h.Metrics.Callback(p.String(), metrics.ResultSuccess)
	log.WithField("user_id", userID.String()).Info("user logged in")
	http.Redirect(w, r, withQuery(req.RedirectURI, "token", access), http.StatusFound)
}

// Refresh issues a new access token for the refresh token cookie. The
// refresh token is single use: its session is consumed and a new refresh
// token replaces the cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := auth.GetRefreshToken(r)
	if err != nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	claims, err := h.Tokens.Parse(raw, auth.KindRefresh)
	if err != nil {
		auth.ClearRefreshToken(w, h.Secure)
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}

	err = h.Sessions.Consume(r.Context(), sessionID)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		h.Log.WithField("user_id", userID.String()).Warn("refresh token reused or revoked")
		auth.ClearRefreshToken(w, h.Secure)
		respond.Unauthorized("unauthorized").Respond(w)
		return
	default:
		h.Log.WithError(err).Error("refresh consume session")
		respond.Database().Respond(w)
		return
	}

	u, err := h.Users.GetByID(r.Context(), userID)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		auth.ClearRefreshToken(w, h.Secure)
		respond.Unauthorized("unauthorized").Respond(w)
		return
	default:
		h.Log.WithError(err).Error("refresh get user")
		respond.Database().Respond(w)
		return
	}

	access, err := h.Tokens.IssueAccess(u.ID, u.Provider)
	if err != nil {
		h.Log.WithError(err).Error("refresh issuing access token")
		respond.InternalServerError("internal error").Respond(w)
		return
	}
	if err := h.startSession(r.Context(), w, u.ID, u.Provider); err != nil {
		h.Log.WithError(err).Error("refresh starting session")
		respond.Database().Respond(w)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

// Logout revokes the session of the refresh token cookie, if any, and
// clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw, err := auth.GetRefreshToken(r); err == nil {
		if claims, err := h.Tokens.Parse(raw, auth.KindRefresh); err == nil {
			if sessionID, err := claims.SessionID(); err == nil {
				if err := h.Sessions.Delete(r.Context(), sessionID); err != nil {
					h.Log.WithError(err).Error("logout delete session")
				}
			}
		}
	}
	auth.ClearRefreshToken(w, h.Secure)
	w.WriteHeader(http.StatusNoContent)
}

type providerTokenResponse struct {
	Provider    string     `json:"provider"`
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// RefreshProviderToken trades the stored provider refresh token for a new
// provider access token and stores the result.
func (h *AuthHandler) RefreshProviderToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	acc, apiErr := h.loadAccount(r.Context(), userID)
	if apiErr != nil {
		apiErr.Respond(w)
		return
	}
	log := h.Log.WithFields(logrus.Fields{"provider": acc.Provider, "user_id": userID.String()})
	if acc.Token.RefreshToken == "" {
		respond.New(http.StatusConflict, "provider issued no refresh token").Respond(w)
		return
	}
	p, cfg, apiErr := h.providerByName(acc.Provider)
	if apiErr != nil {
		apiErr.Respond(w)
		return
	}

	ctx := h.oauthContext(r.Context())
	// A token without an access token is never valid, so the source always
	// goes to the provider.
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: acc.Token.RefreshToken}).Token()
	if err != nil {
		log.WithError(err).Warn("provider token refresh")
		respond.New(http.StatusBadGateway, "provider token refresh failed").Respond(w)
		return
	}
	if err := h.Accounts.Save(r.Context(), userID, p.String(), tok); err != nil {
		log.WithError(err).Error("saving refreshed provider tokens")
		respond.Database().Respond(w)
		return
	}

	resp := providerTokenResponse{Provider: p.String(), AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		resp.ExpiresAt = &tok.Expiry
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Unlink withdraws the user's grant at the provider and deletes the user
// together with their provider tokens and sessions.
func (h *AuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	log := h.Log.WithField("user_id", userID.String())

	acc, err := h.Accounts.Get(ctx, userID)
	switch {
	case err == nil:
		log = log.WithField("provider", acc.Provider)
		if apiErr := h.revoke(ctx, log, acc); apiErr != nil {
			apiErr.Respond(w)
			return
		}
	case errors.Is(err, errs.ErrNotFound):
		log.Info("unlink without stored provider tokens")
	default:
		log.WithError(err).Error("unlink get account")
		respond.Database().Respond(w)
		return
	}

	if err := h.Accounts.Delete(ctx, userID); err != nil {
		log.WithError(err).Error("unlink delete account")
		respond.Database().Respond(w)
		return
	}
	if err := h.Sessions.DeleteByUser(ctx, userID); err != nil {
		log.WithError(err).Error("unlink delete sessions")
		respond.Database().Respond(w)
		return
	}
	if err := h.Users.Delete(ctx, userID); err != nil {
		log.WithError(err).Error("unlink delete user")
		respond.Database().Respond(w)
		return
	}

	auth.ClearRefreshToken(w, h.Secure)
	log.Info("user unlinked")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) revoke(ctx context.Context, log logrus.FieldLogger, acc *account.Account) *respond.APIError {
	p, cfg, apiErr := h.providerByName(acc.Provider)
	if apiErr != nil {
		return apiErr
	}
	octx := h.oauthContext(ctx)
	// Refreshes an expired access token, which the unlink calls need.
	tok, err := cfg.TokenSource(octx, acc.Token).Token()
	if err != nil {
		log.WithError(err).Warn("unlink provider token refresh")
		return respond.New(http.StatusBadGateway, "provider token refresh failed")
	}
	if err := h.specs()[p].Unlink(ctx, h.httpClient(), h.Providers[p], tok); err != nil {
		log.WithError(err).Warn("provider unlink")
		return respond.New(http.StatusBadGateway, "provider unlink failed")
	}
	return nil
}

func (h *AuthHandler) startSession(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, provider string) error {
	refresh, claims, err := h.Tokens.IssueRefresh(userID, provider)
	if err != nil {
		return err
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return err
	}
	if err := h.Sessions.Create(ctx, sessionID, userID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	auth.SetRefreshTokenCookie(w, refresh, h.Tokens.RefreshTTL(), h.Secure)
	return nil
}

func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return uuid.Nil, false
	}
	userID, err := claims.UserID()
	if err != nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *AuthHandler) loadAccount(ctx context.Context, userID uuid.UUID) (*account.Account, *respond.APIError) {
	acc, err := h.Accounts.Get(ctx, userID)
	switch {
	case err == nil:
		return acc, nil
	case errors.Is(err, errs.ErrNotFound):
		return nil, respond.NotFound("no provider account")
	default:
		h.Log.WithError(err).Error("get provider account")
		return nil, respond.Database()
	}
}

// Me returns the user the access token belongs to.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.Users.GetByID(r.Context(), userID)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		respond.NotFound("user not found").Respond(w)
		return
	default:
		h.Log.WithError(err).Error("get current user")
		respond.Database().Respond(w)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *AuthHandler) provider(r *http.Request) (endpoints.Provider, *oauth2.Config, *respond.APIError) {
	return h.providerByName(r.PathValue("provider"))
}

func (h *AuthHandler) providerByName(name string) (endpoints.Provider, *oauth2.Config, *respond.APIError) {
	p, err := endpoints.ParseProvider(name)
	if err != nil {
		return 0, nil, respond.NotFound("unknown provider")
	}
	creds, ok := h.Providers[p]
	if !ok {
		return 0, nil, respond.NotFound("provider not enabled")
	}
	spec, ok := h.specs()[p]
	if !ok {
		return 0, nil, respond.NotFound("unknown provider")
	}
	callback, err := h.Endpoints.CallbackURL(p)
	if err != nil {
		return 0, nil, respond.NotFound("unknown provider")
	}
	return p, spec.OAuth2Config(creds, callback), nil
}

func (h *AuthHandler) oauthContext(ctx context.Context) context.Context {
	if h.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, h.HTTPClient)
	}
	return ctx
}

func (h *AuthHandler) httpClient() *http.Client {
	if h.HTTPClient != nil {
		return h.HTTPClient
	}
	return http.DefaultClient
}

func (h *AuthHandler) specs() map[endpoints.Provider]auth.ProviderSpec {
	if h.Specs != nil {
		return h.Specs
	}
	return auth.Registry
}

func (h *AuthHandler) fetchUserInfo(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, p endpoints.Provider) (*auth.UserInfo, error) {
	spec := h.specs()[p]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}
	return auth.ParseUserInfo(p, body)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, p endpoints.Provider, redirectURI, code, result string) {
	h.Metrics.Callback(p.String(), result)
	http.Redirect(w, r, withQuery(redirectURI, "error", code), http.StatusFound)
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
