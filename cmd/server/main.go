// Command server runs the jot note service.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (via -config, JOT_CONFIG, ./config.yaml, or /etc/jot/config.yaml),
// and JOT_* environment variable overrides. See pkg/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jotsrv/jot/pkg/auth"
	"github.com/jotsrv/jot/pkg/auth/basic"
	"github.com/jotsrv/jot/pkg/auth/jwtauth"
	"github.com/jotsrv/jot/pkg/auth/tokenauth"
	"github.com/jotsrv/jot/pkg/config"
	"github.com/jotsrv/jot/pkg/debug"
	"github.com/jotsrv/jot/pkg/notes"
	"github.com/jotsrv/jot/pkg/observability"
	"github.com/jotsrv/jot/pkg/registration"
	"github.com/jotsrv/jot/pkg/storage"
	"github.com/jotsrv/jot/pkg/storage/memory"
	"github.com/jotsrv/jot/pkg/storage/postgres"
	"github.com/jotsrv/jot/pkg/tokens"
	"github.com/jotsrv/jot/pkg/transport"
	"github.com/jotsrv/jot/pkg/users"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Observability.Logging.Debug, cfg.Observability.Logging.Level)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dir := users.NewDirectory(store)
	tokenSvc := tokens.NewService(store, store)
	noteSvc := notes.New(store, cfg.Notes.PageLimit)
	regSvc := registration.New(store, cfg.Auth.Registration.QuestionTTL)

	chain := buildChain(cfg, dir, tokenSvc, regSvc)
	exempt := auth.NewExemptPolicy(cfg.Auth.ExemptPaths)

	handler := transport.NewHandler(noteSvc, tokenSvc, regSvc, store, cfg.Server.MaxBodySize)

	mux := http.NewServeMux()
	mux.Handle("/", transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(slog.Default()),
		observability.MetricsMiddleware,
		auth.Middleware(chain, exempt),
	)(handler))

	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		slog.Info("metrics enabled", "path", cfg.Observability.Metrics.Path)
	}

	srv := transport.NewServer(mux, transport.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          slog.Default(),
	})

	return srv.ListenAndServe()
}

// openStore creates the configured store backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil

	default:
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	}
}

// buildChain assembles the authenticator chain. Ordering matters: the
// token stage abstains on non-token schemes, the optional JWT stage
// abstains on anything that is not structurally a JWT, and the terminal
// Basic stage never abstains so every request gets a definitive answer.
func buildChain(cfg *config.Config, dir *users.Directory, tokenSvc *tokens.Service, regSvc *registration.Service) *auth.Chain {
	var authenticators []auth.Authenticator

	// JWT runs before the opaque token stage: both accept the bearer
	// scheme, but only the JWT stage abstains on payloads it cannot
	// handle, so structural JWTs must not reach the token lookup.
	if cfg.Auth.JWT.Enabled() {
		authenticators = append(authenticators, jwtauth.New(dir, jwtauth.Config{
			Secret: []byte(cfg.Auth.JWT.Secret),
			Issuer: cfg.Auth.JWT.Issuer,
		}))
		slog.Info("jwt authentication enabled", "issuer", cfg.Auth.JWT.Issuer)
	}

	authenticators = append(authenticators, tokenauth.New(tokenSvc))

	basicCfg := basic.Config{
		Realm:         cfg.Auth.Realm,
		AutoProvision: cfg.Auth.AutoProvision,
	}
	if cfg.Auth.Registration.Enabled {
		basicCfg.Registrar = regSvc
		slog.Info("registration gate enabled", "question_ttl", cfg.Auth.Registration.QuestionTTL)
	}
	authenticators = append(authenticators, basic.New(dir, basicCfg))

	return &auth.Chain{
		Authenticators:   authenticators,
		DefaultChallenge: auth.BasicChallenge(cfg.Auth.Realm),
	}
}
