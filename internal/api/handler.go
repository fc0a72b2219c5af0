// Package api exposes the HTTP surface: REST endpoints for starting,
// inspecting, and cancelling provider runs, plus a WebSocket endpoint that
// relays each run's canonical message stream to subscribed clients.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/realtime"
	"github.com/shaneholloman/automaker/internal/service"
	apiTypes "github.com/shaneholloman/automaker/pkg/api"
)

// Handler wires the REST and WebSocket endpoints to the run coordinator.
type Handler struct {
	coordinator *service.Coordinator
	registry    *provider.Registry
	hub         *realtime.Hub
	logger      *slog.Logger
}

// NewHandler creates an API handler. The hub is owned by the handler; runs
// started through the API are attached to it automatically.
func NewHandler(coordinator *service.Coordinator, registry *provider.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coordinator: coordinator,
		registry:    registry,
		hub:         realtime.NewHub(),
		logger:      logger,
	}
}

// Hub returns the realtime hub so callers can attach runs started outside
// the HTTP surface.
func (h *Handler) Hub() *realtime.Hub { return h.hub }

// Mount registers all routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.createRun)
			r.Get("/", h.listRuns)
			r.Get("/{id}", h.getRun)
			r.Post("/{id}/cancel", h.cancelRun)
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.listProviders)
			r.Get("/{name}/models", h.getProviderModels)
			r.Get("/{name}/status", h.getProviderStatus)
		})

		r.Get("/ws", h.handleWebSocket)
	})
}

// ---------------------------------------------------------------------------
// Run endpoints
// ---------------------------------------------------------------------------

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req apiTypes.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required", "")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required", "")
		return
	}

	hist, err := historyFromWire(req.History)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history", err.Error())
		return
	}

	snap, err := h.coordinator.StartRun(r.Context(), service.StartRunRequest{
		Provider:     req.Provider,
		Model:        req.Model,
		Prompt:       req.Prompt,
		WorkingDir:   req.WorkingDir,
		SystemPrompt: req.SystemPrompt,
		History:      hist,
		AllowedTools: req.AllowedTools,
		MaxTurns:     req.MaxTurns,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProviderNotFound):
			writeError(w, http.StatusBadRequest, "unknown provider", err.Error())
		case errors.Is(err, service.ErrProviderCooling):
			writeError(w, http.StatusServiceUnavailable, "provider cooling down", err.Error())
		case errors.Is(err, service.ErrCoordinatorShutdown):
			writeError(w, http.StatusServiceUnavailable, "server shutting down", "")
		default:
			h.logger.Error("start run failed", "provider", req.Provider, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start run", err.Error())
		}
		return
	}

	// Feed the hub so WebSocket subscribers see the run's messages. A run
	// that finished before the watch attaches is only visible via REST.
	if recv, err := h.coordinator.Watch(snap.ID); err == nil {
		h.hub.AttachRun(snap.ID, recv)
	}

	writeJSON(w, http.StatusCreated, runToResponse(snap))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	snaps := h.coordinator.ListRuns()
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})

	resp := apiTypes.RunListResponse{Runs: make([]apiTypes.RunResponse, 0, len(snaps))}
	for _, snap := range snaps {
		resp.Runs = append(resp.Runs, runToResponse(snap))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.coordinator.GetRun(id)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(snap))
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.coordinator.CancelRun(r.Context(), id); err != nil {
		writeRunError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// historyFromWire converts API history turns into provider history messages,
// rejecting roles outside the user/assistant alternation.
func historyFromWire(turns []apiTypes.HistoryTurn) ([]history.Message, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	msgs := make([]history.Message, 0, len(turns))
	for i, turn := range turns {
		switch turn.Role {
		case history.RoleUser:
			msgs = append(msgs, history.UserText(turn.Text))
		case history.RoleAssistant:
			msgs = append(msgs, history.AssistantText(turn.Text))
		default:
			return nil, fmt.Errorf("history[%d]: unknown role %q", i, turn.Role)
		}
	}
	return msgs, nil
}

func runToResponse(snap domain.RunSnapshot) apiTypes.RunResponse {
	return apiTypes.RunResponse{
		ID:         snap.ID,
		Provider:   snap.Provider,
		Model:      snap.Model,
		Prompt:     snap.Prompt,
		WorkingDir: snap.WorkingDir,
		State:      snap.State.String(),
		CreatedAt:  snap.CreatedAt,
		UpdatedAt:  snap.UpdatedAt,
		Result:     snap.Result,
		Error:      snap.Error,
		ErrorKind:  string(snap.ErrorKind),
	}
}

// writeRunError maps coordinator lookup errors onto HTTP statuses.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found", err.Error())
	case errors.Is(err, service.ErrRunFinished):
		writeError(w, http.StatusConflict, "run already finished", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiTypes.ErrorResponse{
		Error:   message,
		Details: details,
	})
}
