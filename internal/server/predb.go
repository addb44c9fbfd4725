package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/shared"
)

// MaxPageSize caps the limit query parameter of listings.
const MaxPageSize = 100

// PreDBReader is the read side of the PreDB repository served over HTTP.
type PreDBReader interface {
	Get(ctx context.Context, id int64) (*models.PreDBEntry, error)
	List(ctx context.Context, opts repositories.ListOptions) (*models.PreDBPage, error)
}

// PreDBHandler serves paginated PreDB listings and single entries as JSON.
//
//	GET /predb?q=foo+bar&offset=0&limit=25
//	GET /predb/{id}
type PreDBHandler struct {
	predb  PreDBReader
	logger *log.Logger
}

// NewPreDBHandler creates a PreDBHandler reading from predb.
func NewPreDBHandler(predb PreDBReader, logger *log.Logger) *PreDBHandler {
	return &PreDBHandler{predb: predb, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *PreDBHandler) Routes() []string {
	return []string{"GET /predb", "GET /predb/{id}"}
}

// ServeHTTP dispatches to the listing or the single entry depending on the matched route.
func (h *PreDBHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "" {
		h.entry(w, r)
		return
	}
	h.list(w, r)
}

func (h *PreDBHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.writeError(w, fmt.Errorf("%w: offset must be a non-negative integer", shared.ErrInvalidArgument))
		return
	}
	limit, err := intParam(query.Get("limit"), repositories.DefaultPageSize)
	if err != nil || limit <= 0 {
		h.writeError(w, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
		return
	}
	limit = min(limit, MaxPageSize)

	page, err := h.predb.List(r.Context(), repositories.ListOptions{
		Offset: offset,
		Limit:  limit,
		Search: query.Get("q"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *PreDBHandler) entry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, fmt.Errorf("%w: invalid predb id %q", shared.ErrInvalidArgument, r.PathValue("id")))
		return
	}

	entry, err := h.predb.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *PreDBHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("predb request failed", "error", err)
	}
	h.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (h *PreDBHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// HealthHandler reports whether the store answers.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a HealthHandler calling ping on each request.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /healthz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// NewRouter wires the PreDB, health and metrics endpoints with logging and panic recovery.
func NewRouter(predb PreDBReader, ping func(ctx context.Context) error, gatherer prometheus.Gatherer, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))

	router.Handler(NewPreDBHandler(predb, logger))
	router.Handler(NewHealthHandler(ping))
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}
