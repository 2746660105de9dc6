package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jmartynas/social-login/internal/auth"
	"github.com/jmartynas/social-login/internal/authreq"
	"github.com/jmartynas/social-login/internal/config"
	"github.com/jmartynas/social-login/internal/endpoints"
	"github.com/jmartynas/social-login/internal/handlers"
	"github.com/jmartynas/social-login/internal/metrics"
	"github.com/jmartynas/social-login/internal/middleware"
)

const oauthHTTPTimeout = 10 * time.Second

// Deps are the collaborators the server is built from.
type Deps struct {
	Endpoints *endpoints.Endpoints
	Requests  authreq.Store
	Users     handlers.UserStore
	Sessions  handlers.SessionStore
	Accounts  handlers.AccountStore
	Tokens    *auth.TokenIssuer
	DB        handlers.Pinger
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.Metrics
}

type Server struct {
	httpServer *http.Server
	log        logrus.FieldLogger
	tlsCert    string
	tlsKey     string
}

func New(cfg *config.Config, log logrus.FieldLogger, deps Deps) *Server {
	log = log.WithField("thread", "server")
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Listen,
			Handler:      Handler(cfg, log, deps),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		log:     log,
		tlsCert: cfg.Server.TLSCertFile,
		tlsKey:  cfg.Server.TLSKeyFile,
	}
}

// Handler builds the routing tree. OAuth2 routes live under the path of the
// API base URL so that the authorization URLs handed to clients resolve.
func Handler(cfg *config.Config, log logrus.FieldLogger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /ready", handlers.Ready(deps.DB))
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authH := &handlers.AuthHandler{
		Endpoints:        deps.Endpoints,
		Providers:        cfg.OAuth.Providers(),
		AllowedRedirects: cfg.OAuth.RedirectAllowList(),
		Requests:         deps.Requests,
		Users:            deps.Users,
		Sessions:         deps.Sessions,
		Accounts:         deps.Accounts,
		Tokens:           deps.Tokens,
		Metrics:          deps.Metrics,
		Log:              log.WithField("thread", "auth"),
		Secure:           cfg.Secure(),
		HTTPClient:       &http.Client{Timeout: oauthHTTPTimeout},
	}
	requireAuth := middleware.RequireAuth(deps.Tokens, log)
	base := deps.Endpoints.BasePath()
	mux.HandleFunc("GET "+base+"/oauth2/authorize/{provider}", authH.Authorize)
	mux.HandleFunc("GET "+base+"/oauth2/callback/{provider}", authH.Callback)
	mux.Handle("POST "+base+"/oauth2/token/refresh", requireAuth(http.HandlerFunc(authH.RefreshProviderToken)))
	mux.Handle("DELETE "+base+"/oauth2/unlink", requireAuth(http.HandlerFunc(authH.Unlink)))
	mux.HandleFunc("POST "+base+"/auth/refresh", authH.Refresh)
	mux.HandleFunc("GET "+base+"/auth/logout", authH.Logout)
	mux.Handle("GET "+base+"/user/me", requireAuth(http.HandlerFunc(authH.Me)))

	trustedProxyNetworks, err := middleware.ParseTrustedProxyCIDRs(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		log.WithError(err).WithField("value", cfg.Server.TrustedProxyCIDRs).
			Warn("invalid trusted proxy CIDRs, real IP will use connection remote addr")
		trustedProxyNetworks = nil
	}

	h := middleware.NoCache(mux)
	h = middleware.Recoverer(log)(h)
	h = middleware.Logger(log)(h)
	h = middleware.RequestID(h)
	h = middleware.RealIPWith(trustedProxyNetworks)(h)
	return h
}

func (s *Server) Start() error {
	if s.tlsCert != "" && s.tlsKey != "" {
		s.log.WithField("addr", s.httpServer.Addr).Info("server starting (HTTPS)")
		return s.httpServer.ListenAndServeTLS(s.tlsCert, s.tlsKey)
	}
	s.log.WithField("addr", s.httpServer.Addr).Info("server starting")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}
