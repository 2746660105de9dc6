package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jmartynas/social-login/internal/endpoints"
)

type ProviderSpec struct {
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	Scopes      []string
	// RevokeURL is where a user's grant is withdrawn; Revoke says how.
	RevokeURL string
	Revoke    RevokeStyle
}

// Credentials are the client id and secret issued by a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

var Registry = map[endpoints.Provider]ProviderSpec{
	endpoints.Google: {
		Endpoint:    google.Endpoint,
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:      []string{"email", "profile"},
		RevokeURL:   "https://oauth2.googleapis.com/revoke",
		Revoke:      RevokeToken,
	},
	endpoints.Naver: {
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://nid.naver.com/oauth2.0/authorize",
			TokenURL:  "https://nid.naver.com/oauth2.0/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: "https://openapi.naver.com/v1/nid/me",
		RevokeURL:   "https://nid.naver.com/oauth2.0/token",
		Revoke:      RevokeDeleteGrant,
	},
	endpoints.Kakao: {
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://kauth.kakao.com/oauth/authorize",
			TokenURL:  "https://kauth.kakao.com/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: "https://kapi.kakao.com/v2/user/me",
		Scopes:      []string{"profile_nickname", "account_email"},
		RevokeURL:   "https://kapi.kakao.com/v1/user/unlink",
		Revoke:      RevokeBearer,
	},
}

// OAuth2Config builds the client configuration for this provider.
func (s ProviderSpec) OAuth2Config(creds Credentials, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     s.Endpoint,
		Scopes:       s.Scopes,
	}
}
