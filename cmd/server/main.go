package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/jmartynas/social-login/internal/account"
	"github.com/jmartynas/social-login/internal/auth"
	"github.com/jmartynas/social-login/internal/authreq"
	"github.com/jmartynas/social-login/internal/config"
	"github.com/jmartynas/social-login/internal/database"
	"github.com/jmartynas/social-login/internal/metrics"
	"github.com/jmartynas/social-login/internal/migrations"
	"github.com/jmartynas/social-login/internal/server"
	"github.com/jmartynas/social-login/internal/session"
	"github.com/jmartynas/social-login/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}
	log := newLogger(cfg)

	ends, err := cfg.Endpoints()
	if err != nil {
		log.WithError(err).Fatal("building endpoints")
	}
	keys, err := auth.DeriveKeys([]byte(cfg.OAuth.Secret))
	if err != nil {
		log.WithError(err).Fatal("deriving keys")
	}
	tokens, err := auth.NewTokenIssuer(keys.Token, cfg.OAuth.Issuer, cfg.OAuth.AccessTokenTTL, cfg.OAuth.RefreshTokenTTL)
	if err != nil {
		log.WithError(err).Fatal("creating token issuer")
	}

	dbc, err := database.Open(cfg.MySQL)
	if err != nil {
		log.WithError(err).Fatal("mysql connection failed")
	}
	defer dbc.Close()
	log.WithField("replicas", len(cfg.MySQL.Replicas)).Info("mysql connected")

	if err := migrations.Run(dbc.PrimaryDBs()[0], log); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}

	var requests authreq.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping().Err(); err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		log.WithField("addr", cfg.Redis.Addr).Info("authorization requests stored in redis")
		requests = authreq.NewRedisStore(rdb)
	} else {
		requests = authreq.NewCookieStore(keys.CookieHash, keys.CookieBlock, cfg.Secure())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for p := range cfg.OAuth.Providers() {
		authURL, _ := ends.AuthURL(p)
		log.WithField("provider", p.String()).WithField("auth_url", authURL).Info("provider enabled")
	}

	srv := server.New(cfg, log, server.Deps{
		Endpoints: ends,
		Requests:  requests,
		Users:     user.NewRepository(dbc),
		Sessions:  session.NewRepository(dbc),
		Accounts:  account.NewRepository(dbc),
		Tokens:    tokens,
		DB:        dbc,
		Gatherer:  reg,
		Metrics:   metrics.New(reg),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
		return
	}
	log.Info("server stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
