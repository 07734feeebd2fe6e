// Package httpapi exposes stored popularity records and the collection trigger.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/usecase"
)

// SecretHeader carries the shared trigger secret.
const SecretHeader = "X-Trigger-Secret"

// RecordLister serves the read API.
type RecordLister interface {
	List(ctx context.Context, filter domain.RecordFilter) ([]domain.WorkflowRecord, error)
}

// RunDispatcher starts and tracks background collection runs.
type RunDispatcher interface {
	Dispatch(ctx context.Context, req usecase.RunRequest) usecase.Task
	Status(id string) (usecase.Task, error)
	Wait(ctx context.Context, id string) (usecase.Task, error)
}

// Deps wires the handler.
type Deps struct {
	Records   RecordLister
	Runs      RunDispatcher
	Secret    string
	Countries []domain.Country
	Logger    *slog.Logger
}

type handler struct {
	records   RecordLister
	runs      RunDispatcher
	secret    []byte
	countries []domain.Country
	logger    *slog.Logger
}

// NewHandler builds the chi router.
func NewHandler(deps Deps) http.Handler {
	h := &handler{
		records:   deps.Records,
		runs:      deps.Runs,
		secret:    []byte(deps.Secret),
		countries: deps.Countries,
		logger:    deps.Logger,
	}
	if len(h.countries) == 0 {
		h.countries = usecase.DefaultCountries
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", h.home)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/workflows", h.listWorkflows)
	r.Get("/api/workflows/", h.listWorkflows)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSecret)
		r.Post("/api/collect", h.triggerCollect)
		r.Get("/api/collect/{runID}", h.runStatus)
	})

	return r
}

func (h *handler) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "n8n Workflow Popularity API",
		"endpoints": map[string]string{
			"/api/workflows/":      "Get workflows",
			"/api/collect":         "Trigger a collection run (POST, secret required)",
			"/api/collect/{runID}": "Collection run status (secret required)",
			"/health":              "Health check",
		},
	})
}

func (h *handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	query := r.URL.Query()
	filter := domain.RecordFilter{
		Platform: strings.TrimSpace(query.Get("platform")),
		Country:  strings.TrimSpace(query.Get("country")),
	}
	if filter.Platform != "" {
		platform, ok := domain.ParsePlatform(filter.Platform)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown platform "+strconv.Quote(filter.Platform))
			return
		}
		filter.Platform = string(platform)
	}
	// limit=0 and an absent limit both mean the default page size.
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	records, err := h.records.List(r.Context(), filter)
	if err != nil {
		h.logError("list workflows", err)
		writeError(w, http.StatusInternalServerError, "cannot load workflows")
		return
	}
	if records == nil {
		records = []domain.WorkflowRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) triggerCollect(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "collection is not configured")
		return
	}

	req, err := h.parseRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := h.runs.Dispatch(r.Context(), req)
	h.info("collection dispatched", "run_id", task.ID, "request_id", middleware.GetReqID(r.Context()))

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "run_id": task.ID})
		return
	}

	done, err := h.runs.Wait(r.Context(), task.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch done.Status {
	case usecase.TaskFailed:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": done.Error, "run_id": done.ID, "status": done.Status})
	case usecase.TaskRunning:
		writeJSON(w, http.StatusAccepted, done)
	default:
		writeJSON(w, http.StatusOK, done)
	}
}

func (h *handler) runStatus(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "collection is not configured")
		return
	}

	task, err := h.runs.Status(chi.URLParam(r, "runID"))
	if errors.Is(err, usecase.ErrUnknownRun) {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *handler) parseRunRequest(r *http.Request) (usecase.RunRequest, error) {
	var req usecase.RunRequest
	query := r.URL.Query()

	source := strings.TrimSpace(query.Get("source"))
	if source != "" && !strings.EqualFold(source, "all") {
		platform, ok := domain.ParsePlatform(source)
		if !ok {
			return req, errors.New("unknown source " + strconv.Quote(source))
		}
		req.Platforms = []domain.Platform{platform}
	}

	country := strings.TrimSpace(query.Get("country"))
	if country == "" || strings.EqualFold(country, "all") {
		req.Countries = append([]domain.Country(nil), h.countries...)
		return req, nil
	}

	code := domain.NormalizeCountry(country)
	for _, allowed := range h.countries {
		if allowed == code {
			req.Countries = []domain.Country{code}
			return req, nil
		}
	}
	return req, errors.New("unsupported country " + strconv.Quote(country))
}

// requireSecret rejects the request before any collector can run.
func (h *handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(SecretHeader)
		if provided == "" {
			provided = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if len(h.secret) == 0 || subtle.ConstantTimeCompare([]byte(provided), h.secret) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid trigger secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) info(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
	}
}

func (h *handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, "error", err)
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
