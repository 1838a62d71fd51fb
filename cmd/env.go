package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siteaudit/internal/guard"
	"github.com/sells-group/siteaudit/internal/pipeline"
	"github.com/sells-group/siteaudit/internal/render"
	"github.com/sells-group/siteaudit/internal/resilience"
	"github.com/sells-group/siteaudit/internal/scorer"
	"github.com/sells-group/siteaudit/internal/store"
	anthropicpkg "github.com/sells-group/siteaudit/pkg/anthropic"
)

// auditEnv holds the initialized store and auditor shared by the audit and
// serve commands.
type auditEnv struct {
	Store   store.Store
	Auditor *pipeline.Auditor
}

// Close releases resources held by the environment.
func (ae *auditEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.New(fmt.Sprintf("unknown store driver %q", cfg.Store.Driver))
	}
}

// initEnv sets up the store, browser renderer, Anthropic client, and the
// auditor. Callers should defer env.Close().
func initEnv(ctx context.Context) (*auditEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("SITEAUDIT_ANTHROPIC_KEY is required")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	renderer := render.NewChromeRenderer(render.Options{
		ViewportWidth:     cfg.Render.ViewportWidth,
		ViewportHeight:    cfg.Render.ViewportHeight,
		Timeout:           time.Duration(cfg.Render.TimeoutSecs) * time.Second,
		SettleDelay:       time.Duration(cfg.Render.SettleDelayMs) * time.Millisecond,
		ScreenshotQuality: cfg.Render.ScreenshotQuality,
	})

	oracle := scorer.New(anthropicpkg.NewClient(cfg.Anthropic.Key), scorer.Config{
		FreeModel: cfg.Anthropic.FreeModel,
		ProModel:  cfg.Anthropic.ProModel,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Retry: resilience.FromRetryConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
			cfg.Retry.Multiplier,
			cfg.Retry.JitterFraction,
		),
	})

	auditor := pipeline.NewAuditor(guard.New(), renderer, st, oracle)

	return &auditEnv{Store: st, Auditor: auditor}, nil
}
