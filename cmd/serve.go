package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/siteaudit/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)
		router := newRouter(env, limiter)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *auditEnv, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audit", func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			var body struct {
				URL      string `json:"url"`
				Language string `json:"language"`
				ModelTag string `json:"model_tag"`
				Fresh    bool   `json:"fresh"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.URL == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}

			res, err := env.Auditor.Audit(req.Context(), pipeline.Request{
				URL:              body.URL,
				Language:         body.Language,
				UserID:           req.Header.Get("X-User-ID"),
				RequiredModelTag: body.ModelTag,
				Fresh:            body.Fresh,
			})
			if err != nil {
				status, msg := mapAuditError(err)
				zap.L().Warn("audit request failed",
					zap.String("url", body.URL),
					zap.Int("status", status),
					zap.Error(err))
				writeError(w, status, msg)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"url":       body.URL,
				"cached":    res.Cached,
				"model_tag": res.ModelTag,
				"scored_at": res.CreatedAt,
				"report":    res.Report,
			})
		})

		r.Get("/audit/latest", func(w http.ResponseWriter, req *http.Request) {
			url := req.URL.Query().Get("url")
			if url == "" {
				writeError(w, http.StatusBadRequest, "url query parameter is required")
				return
			}

			entry, err := env.Auditor.Latest(req.Context(), url,
				req.URL.Query().Get("language"), req.URL.Query().Get("model_tag"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			if entry == nil {
				writeError(w, http.StatusNotFound, "no audit found")
				return
			}
			writeJSON(w, http.StatusOK, entry)
		})
	})

	return r
}

// mapAuditError translates pipeline failure classes to HTTP statuses.
func mapAuditError(err error) (int, string) {
	switch {
	case eris.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest, "url rejected"
	case eris.Is(err, pipeline.ErrUnknownUser):
		return http.StatusUnauthorized, "unknown user"
	case eris.Is(err, pipeline.ErrNoCredits):
		return http.StatusPaymentRequired, "no credits remaining"
	case eris.Is(err, pipeline.ErrNetwork):
		return http.StatusBadGateway, "page could not be loaded"
	case eris.Is(err, pipeline.ErrOracle):
		return http.StatusServiceUnavailable, "scoring unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
