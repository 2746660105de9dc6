package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

type RevokeStyle int

const (
	// RevokeToken posts the token to a revocation endpoint (RFC 7009).
	RevokeToken RevokeStyle = iota
	// RevokeDeleteGrant asks the token endpoint for grant_type=delete.
	RevokeDeleteGrant
	// RevokeBearer posts to an unlink endpoint with the access token as bearer.
	RevokeBearer
)

const maxRevokeResponseBytes = 64 << 10

// Unlink withdraws the grant the user gave this client. tok must carry a
// live access token; RevokeToken prefers the refresh token when present.
// A provider without a RevokeURL has nothing to withdraw.
func (s ProviderSpec) Unlink(ctx context.Context, client *http.Client, creds Credentials, tok *oauth2.Token) error {
	if s.RevokeURL == "" {
		return nil
	}
	form := url.Values{}
	var bearer string
	switch s.Revoke {
	case RevokeToken:
		t := tok.RefreshToken
		if t == "" {
			t = tok.AccessToken
		}
		form.Set("token", t)
	case RevokeDeleteGrant:
		form.Set("grant_type", "delete")
		form.Set("client_id", creds.ClientID)
		form.Set("client_secret", creds.ClientSecret)
		form.Set("access_token", tok.AccessToken)
		form.Set("service_provider", "NAVER")
	case RevokeBearer:
		bearer = tok.AccessToken
	default:
		return fmt.Errorf("unlink: unknown revoke style %d", s.Revoke)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRevokeResponseBytes))
	if err != nil {
		return fmt.Errorf("unlink: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unlink: provider returned status %d", resp.StatusCode)
	}
	// Naver reports failures in a 200 body.
	var result struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &result) == nil && result.Error != "" {
		return fmt.Errorf("unlink: provider error %q", result.Error)
	}
	return nil
}
