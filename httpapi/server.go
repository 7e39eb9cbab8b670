// Package httpapi is the optional HTTP front door for a kagebunshin
// root Agent: POST /run to drive a task to completion, GET /healthz
// for liveness. Not part of the core contract — it only calls the
// façade and degrades independently of any running agent.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/kagebunshin/auth"
	"github.com/hazyhaar/kagebunshin/shield"
)

// Runner is the subset of *kagebunshin.Agent this package depends on.
type Runner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Config configures the HTTP front.
type Config struct {
	// JWTSecret, if non-empty, requires a valid bearer token (via
	// auth.Middleware + auth.RequireAuth) on /run. Empty disables auth,
	// appropriate only for a trusted internal network.
	JWTSecret []byte
	Logger    *slog.Logger
}

// NewRouter builds a chi.Router exposing /healthz and /run against agent.
func NewRouter(agent Runner, cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(shield.HeadToGet)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxFormBody(64 * 1024))
	r.Use(shield.TraceID)

	r.Get("/healthz", handleHealthz)

	runHandler := handleRun(agent, cfg.Logger)
	if len(cfg.JWTSecret) > 0 {
		r.With(auth.Middleware(cfg.JWTSecret), auth.RequireAuth).Post("/run", runHandler)
	} else {
		r.Post("/run", runHandler)
	}

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	Task    string `json:"task"`
	Timeout int    `json:"timeout_seconds,omitempty"`
}

type runResponse struct {
	Answer string `json:"answer"`
}

func handleRun(agent Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.Task == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task must not be empty"})
			return
		}

		ctx := r.Context()
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
			defer cancel()
		}

		answer, err := agent.Run(ctx, req.Task)
		if err != nil {
			logger.Error("httpapi: run failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, runResponse{Answer: answer})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
