package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/jmartynas/social-login/internal/auth"
	"github.com/jmartynas/social-login/internal/endpoints"
	"github.com/jmartynas/social-login/internal/errs"
)

const (
	Prefix = "SOCIAL"

	minSecretLength = 32
)

var (
	ErrInvalidLogLevel  = errors.New("config: invalid log level")
	ErrSecretLength     = errors.New("config: SOCIAL_OAUTH_SECRET must be at least 32 characters")
	ErrNoProviders      = errors.New("config: no OAuth2 provider has both a client id and a client secret")
	ErrDSNNotConfigured = errs.ErrDSNNotConfigured
)

type Config struct {
	Production bool   `envconfig:"production"`
	LogLevel   string `envconfig:"log_level" default:"info"`

	Server ServerConfig `envconfig:"server"`
	MySQL  MySQLConfig  `envconfig:"mysql"`
	Redis  RedisConfig  `envconfig:"redis"`
	OAuth  OAuthConfig  `envconfig:"oauth"`
}

type ServerConfig struct {
	Listen            string        `envconfig:"listen" default:":8080"`
	ReadTimeout       time.Duration `envconfig:"read_timeout" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"write_timeout" default:"15s"`
	IdleTimeout       time.Duration `envconfig:"idle_timeout" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"shutdown_timeout" default:"30s"`
	TLSCertFile       string        `envconfig:"tls_cert_file"`
	TLSKeyFile        string        `envconfig:"tls_key_file"`
	TrustedProxyCIDRs string        `envconfig:"trusted_proxy_cidrs" default:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,::1/128,fc00::/7"`
}

type MySQLConfig struct {
	DSN             string        `envconfig:"dsn"`
	Replicas        []string      `envconfig:"replicas"`
	MaxOpenConns    int           `envconfig:"max_open_conns"`
	MaxIdleConns    int           `envconfig:"max_idle_conns"`
	ConnMaxLifetime time.Duration `envconfig:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `envconfig:"addr"`
	Password string `envconfig:"password"`
	DB       int    `envconfig:"db"`
}

type OAuthConfig struct {
	APIBaseURL             string        `envconfig:"api_base_url" default:"http://localhost:8080/api"`
	RedirectURI            string        `envconfig:"redirect_uri" default:"http://localhost:3000/oauth2/callback"`
	AuthorizedRedirectURIs []string      `envconfig:"authorized_redirect_uris"`
	Secret                 string        `envconfig:"secret"`
	Issuer                 string        `envconfig:"issuer" default:"social-login"`
	AccessTokenTTL         time.Duration `envconfig:"access_token_ttl" default:"15m"`
	RefreshTokenTTL        time.Duration `envconfig:"refresh_token_ttl" default:"168h"`

	Google ProviderConfig `envconfig:"google"`
	Naver  ProviderConfig `envconfig:"naver"`
	Kakao  ProviderConfig `envconfig:"kakao"`
}

type ProviderConfig struct {
	ClientID     string `envconfig:"client_id"`
	ClientSecret string `envconfig:"client_secret"`
}

// Load reads the configuration from SOCIAL_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	if c.MySQL.DSN == "" {
		return ErrDSNNotConfigured
	}
	if len(c.OAuth.Secret) < minSecretLength {
		return ErrSecretLength
	}
	if len(c.OAuth.Providers()) == 0 {
		return ErrNoProviders
	}
	if _, err := c.Endpoints(); err != nil {
		return err
	}
	return nil
}

// Endpoints builds the URL set the server and its clients agree on.
func (c *Config) Endpoints() (*endpoints.Endpoints, error) {
	return endpoints.New(c.OAuth.APIBaseURL, c.OAuth.RedirectURI)
}

// Secure reports whether cookies should carry the Secure attribute.
func (c *Config) Secure() bool {
	return c.Production || (c.Server.TLSCertFile != "" && c.Server.TLSKeyFile != "")
}

// Providers returns the credentials of every provider that is fully
// configured.
func (c OAuthConfig) Providers() map[endpoints.Provider]auth.Credentials {
	out := make(map[endpoints.Provider]auth.Credentials)
	for p, pc := range map[endpoints.Provider]ProviderConfig{
		endpoints.Google: c.Google,
		endpoints.Naver:  c.Naver,
		endpoints.Kakao:  c.Kakao,
	} {
		if pc.ClientID != "" && pc.ClientSecret != "" {
			out[p] = auth.Credentials{ClientID: pc.ClientID, ClientSecret: pc.ClientSecret}
		}
	}
	return out
}

// RedirectAllowList returns the redirect URIs a login may return to. The
// configured redirect URI is always allowed.
func (c OAuthConfig) RedirectAllowList() []string {
	out := []string{c.RedirectURI}
	for _, u := range c.AuthorizedRedirectURIs {
		u = strings.TrimSpace(u)
		if u != "" && u != c.RedirectURI {
			out = append(out, u)
		}
	}
	return out
}

// DSNWithOptions returns the primary DSN with the options migrations and
// time scanning rely on.
func (c MySQLConfig) DSNWithOptions() string {
	return WithDSNOptions(c.DSN)
}

func WithDSNOptions(dsn string) string {
	if dsn == "" {
		return ""
	}
	for _, opt := range []string{"parseTime=true", "multiStatements=true"} {
		key := opt[:strings.Index(opt, "=")]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + opt
		} else {
			dsn += "?" + opt
		}
	}
	return dsn
}
