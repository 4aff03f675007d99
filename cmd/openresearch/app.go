package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/auth/apikey"
	"github.com/rhuss/openresearch/pkg/auth/jwt"
	"github.com/rhuss/openresearch/pkg/auth/noop"
	"github.com/rhuss/openresearch/pkg/config"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/engine"
	"github.com/rhuss/openresearch/pkg/provider/registry"
	"github.com/rhuss/openresearch/pkg/storage/memory"
	"github.com/rhuss/openresearch/pkg/storage/postgres"
)

// app holds the components shared by serve and run.
type app struct {
	cfg      *config.Config
	settings *registry.Manager
	engine   *engine.Engine
	archive  *postgres.Archive // nil unless archive.enabled
}

// loadConfig reads the configuration named by the --config flag and sets up
// logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	debug.Init(cfg.Debug.Categories, cfg.Debug.Level, cfg.Debug.Format)
	debug.Log("config", "configuration loaded",
		"llm_provider", cfg.LLM.Provider,
		"search_provider", cfg.Search.Provider,
		"auth", cfg.Auth.Type,
		"archive", cfg.Archive.Enabled)
	return cfg, nil
}

// newApp builds providers, the optional archive and the engine.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		settings: registry.NewManager(cfg.LLM, cfg.Search),
	}

	ecfg := engine.Config{DepthPolicy: engine.ParseDepthPolicy(cfg.Engine.DepthPolicy)}
	if cfg.Archive.Enabled {
		arch, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Archive.Postgres.DSN,
			MaxConns:       cfg.Archive.Postgres.MaxConns,
			MigrateOnStart: cfg.Archive.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening report archive: %w", err)
		}
		a.archive = arch
		ecfg.Archive = arch
		slog.Info("report archive enabled", "backend", "postgres")
	}

	eng, err := engine.New(memory.New(), a.settings, ecfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = eng

	cur := a.settings.Current()
	slog.Info("providers ready", "reasoner", cur.Reasoner.Name(), "searcher", cur.Searcher.Name())
	return a, nil
}

func (a *app) close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
}

// authChain builds the authenticator chain for auth.type. With auth
// disabled every caller is admitted anonymously.
func authChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	switch cfg.Type {
	case "", "none":
		return &auth.AuthChain{Authenticators: []auth.Authenticator{&noop.Authenticator{}}}, nil
	case "apikey":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.FromConfig(cfg.APIKeys)},
			DefaultDecision: auth.No,
		}, nil
	case "jwt":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{jwt.New(jwt.FromConfig(cfg.JWT))},
			DefaultDecision: auth.No,
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
