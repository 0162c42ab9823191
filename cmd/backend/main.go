package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	captureimpl "github.com/pitchlab/matchclip/external/capture"
	configloader "github.com/pitchlab/matchclip/external/config"
	extractorimpl "github.com/pitchlab/matchclip/external/extractor"
	mediaimpl "github.com/pitchlab/matchclip/external/media"
	notifyimpl "github.com/pitchlab/matchclip/external/notify"
	repositoryimpl "github.com/pitchlab/matchclip/external/repository"
	storageimpl "github.com/pitchlab/matchclip/external/storage"
	transcriberimpl "github.com/pitchlab/matchclip/external/transcriber"
	"github.com/pitchlab/matchclip/internal/capture"
	"github.com/pitchlab/matchclip/internal/config"
	"github.com/pitchlab/matchclip/internal/repository"
	"github.com/pitchlab/matchclip/internal/session"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching control server")
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	captureimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	extractorimpl.RegisterDI(injector)
	storageimpl.RegisterDI(injector)
	mediaimpl.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	hub, err := do.Invoke[*notifyimpl.WSHub](injector)
	if err != nil {
		slog.Error("failed to resolve ws hub", "error", err)
		os.Exit(1)
	}
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to resolve repository", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /matches", handleCreateMatch(repo))
	mux.HandleFunc("POST /sessions/start", handleStart(manager))
	mux.HandleFunc("POST /sessions/pause", handlePause(manager))
	mux.HandleFunc("POST /sessions/resume", handleResume(manager))
	mux.HandleFunc("POST /sessions/finalize", handleFinalize(manager))
	mux.HandleFunc("POST /incidents/manual", handleManualIncident(manager))
	mux.HandleFunc("POST /incidents/{id}/approve", handleApprove(manager))
	mux.HandleFunc("PATCH /incidents/{id}", handleEditIncident(manager))
	mux.HandleFunc("DELETE /incidents/{id}", handleRemoveIncident(manager))
	mux.HandleFunc("GET /ws", hub.Handle)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	done := make(chan struct{})
	go func() {
		slog.Info("control server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if _, err := manager.Finalize(ctx); err != nil {
		slog.Error("finalize on shutdown failed", "error", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}

type createMatchRequest struct {
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
}

func handleCreateMatch(repo repository.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.HomeTeam == "" || req.AwayTeam == "" {
			writeError(w, http.StatusBadRequest, "homeTeam and awayTeam are required")
			return
		}
		match, err := repo.CreateMatch(r.Context(), repository.CreateMatchInput{
			HomeTeam: req.HomeTeam,
			AwayTeam: req.AwayTeam,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"matchId":  match.ID,
			"homeTeam": match.HomeTeam,
			"awayTeam": match.AwayTeam,
			"status":   string(match.Status),
		})
	}
}

type startRequest struct {
	MatchID   string `json:"matchId"`
	InputURL  string `json:"inputUrl"`
	AudioOnly bool   `json:"audioOnly"`
}

func handleStart(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.MatchID == "" || req.InputURL == "" {
			writeError(w, http.StatusBadRequest, "matchId and inputUrl are required")
			return
		}
		if err := manager.StartSession(r.Context(), session.StartInput{
			MatchID: req.MatchID,
			Source:  capture.Source{InputURL: req.InputURL, AudioOnly: req.AudioOnly},
		}); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"matchId": req.MatchID, "status": "live"})
	}
}

func handlePause(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Pause(r.Context()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "paused"})
	}
}

func handleResume(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Resume(r.Context()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "live"})
	}
}

func handleFinalize(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := manager.Finalize(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if result == nil {
			writeError(w, http.StatusConflict, "no session to finalize")
			return
		}
		stepErrors := make([]map[string]string, 0, len(result.StepErrors))
		for _, se := range result.StepErrors {
			stepErrors = append(stepErrors, map[string]string{"step": se.Step, "error": se.Err.Error()})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"videoUrl":        result.VideoURL,
			"eventsCount":     result.EventsCount,
			"transcriptWords": result.TranscriptWords,
			"durationSeconds": result.DurationSeconds,
			"stepErrors":      stepErrors,
		})
	}
}

type manualIncidentRequest struct {
	EventType string `json:"eventType"`
}

func handleManualIncident(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualIncidentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.EventType == "" {
			writeError(w, http.StatusBadRequest, "eventType is required")
			return
		}
		inc, err := manager.AddManualIncident(r.Context(), req.EventType)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"incidentId": inc.ID,
			"eventType":  inc.EventType,
			"minute":     inc.Minute,
			"second":     inc.Second,
			"status":     string(inc.ApprovalStatus),
		})
	}
}

func handleApprove(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := r.PathValue("id")
		if incidentID == "" {
			writeError(w, http.StatusBadRequest, "incident id is required")
			return
		}
		if err := manager.Approve(r.Context(), incidentID); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"incidentId": incidentID, "status": "approved"})
	}
}

func handleEditIncident(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := r.PathValue("id")
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		// JSON numbers decode as float64; the registry expects ints for
		// minute and second.
		for _, key := range []string{"minute", "second"} {
			if v, ok := fields[key].(float64); ok {
				fields[key] = int(v)
			}
		}
		if err := manager.EditIncident(r.Context(), incidentID, fields); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"incidentId": incidentID})
	}
}

func handleRemoveIncident(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := r.PathValue("id")
		if err := manager.RemoveIncident(r.Context(), incidentID); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"incidentId": incidentID})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
