package config

import (
	"errors"
	"testing"
	"time"

	"github.com/jmartynas/social-login/internal/endpoints"
	"github.com/jmartynas/social-login/internal/errs"
)

const testSecret = "this-secret-is-at-least-32-characters-long"

func TestWithDSNOptions(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"empty", "", ""},
		{"no query", "u:p@tcp(host:3306)/db", "u:p@tcp(host:3306)/db?parseTime=true&multiStatements=true"},
		{"with query", "u:p@tcp(host:3306)/db?charset=utf8mb4", "u:p@tcp(host:3306)/db?charset=utf8mb4&parseTime=true&multiStatements=true"},
		{"parseTime kept", "u:p@tcp(host:3306)/db?parseTime=false", "u:p@tcp(host:3306)/db?parseTime=false&multiStatements=true"},
		{"both present", "u:p@tcp(host:3306)/db?multiStatements=true&parseTime=true", "u:p@tcp(host:3306)/db?multiStatements=true&parseTime=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithDSNOptions(tt.dsn); got != tt.want {
				t.Errorf("WithDSNOptions() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOCIAL_MYSQL_DSN", "u:p@tcp(localhost:3306)/social")
	t.Setenv("SOCIAL_OAUTH_KAKAO_CLIENT_ID", "kid")
	t.Setenv("SOCIAL_OAUTH_KAKAO_CLIENT_SECRET", "ksecret")
	t.Setenv("SOCIAL_MYSQL_REPLICAS", "r1,r2")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OAuth.APIBaseURL != endpoints.DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q", cfg.OAuth.APIBaseURL)
	}
	if cfg.OAuth.RedirectURI != endpoints.DefaultRedirectURI {
		t.Errorf("RedirectURI = %q", cfg.OAuth.RedirectURI)
	}
	if cfg.Server.Listen != ":8080" || cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.OAuth.AccessTokenTTL != 15*time.Minute || cfg.OAuth.RefreshTokenTTL != 168*time.Hour {
		t.Errorf("token TTLs = %v/%v", cfg.OAuth.AccessTokenTTL, cfg.OAuth.RefreshTokenTTL)
	}
	if len(cfg.MySQL.Replicas) != 2 {
		t.Errorf("Replicas = %v", cfg.MySQL.Replicas)
	}
	providers := cfg.OAuth.Providers()
	if len(providers) != 1 || providers[endpoints.Kakao].ClientID != "kid" {
		t.Errorf("Providers() = %+v", providers)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogLevel: "info",
			MySQL:    MySQLConfig{DSN: "u:p@tcp(localhost:3306)/social"},
			OAuth: OAuthConfig{
				APIBaseURL:  endpoints.DefaultAPIBaseURL,
				RedirectURI: endpoints.DefaultRedirectURI,
				Secret:      testSecret,
				Google:      ProviderConfig{ClientID: "a", ClientSecret: "b"},
			},
		}
	}

	t.Run("ok", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
	t.Run("invalid log level", func(t *testing.T) {
		cfg := valid()
		cfg.LogLevel = "loud"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidLogLevel) {
			t.Errorf("Validate() = %v, want ErrInvalidLogLevel", err)
		}
	})
	t.Run("missing DSN", func(t *testing.T) {
		cfg := valid()
		cfg.MySQL.DSN = ""
		if err := cfg.Validate(); !errors.Is(err, ErrDSNNotConfigured) {
			t.Errorf("Validate() = %v, want ErrDSNNotConfigured", err)
		}
	})
	t.Run("short secret", func(t *testing.T) {
		cfg := valid()
		cfg.OAuth.Secret = "short"
		if err := cfg.Validate(); !errors.Is(err, ErrSecretLength) {
			t.Errorf("Validate() = %v, want ErrSecretLength", err)
		}
	})
	t.Run("half configured provider", func(t *testing.T) {
		cfg := valid()
		cfg.OAuth.Google = ProviderConfig{ClientID: "a"}
		if err := cfg.Validate(); !errors.Is(err, ErrNoProviders) {
			t.Errorf("Validate() = %v, want ErrNoProviders", err)
		}
	})
	t.Run("relative base URL", func(t *testing.T) {
		cfg := valid()
		cfg.OAuth.APIBaseURL = "/api"
		if err := cfg.Validate(); !errors.Is(err, errs.ErrInvalidEndpoint) {
			t.Errorf("Validate() = %v, want ErrInvalidEndpoint", err)
		}
	})
}

func TestOAuthConfig_RedirectAllowList(t *testing.T) {
	c := OAuthConfig{
		RedirectURI:            endpoints.DefaultRedirectURI,
		AuthorizedRedirectURIs: []string{" https://app.example.com/cb ", endpoints.DefaultRedirectURI, ""},
	}
	got := c.RedirectAllowList()
	if len(got) != 2 || got[0] != endpoints.DefaultRedirectURI || got[1] != "https://app.example.com/cb" {
		t.Errorf("RedirectAllowList() = %v", got)
	}
}
