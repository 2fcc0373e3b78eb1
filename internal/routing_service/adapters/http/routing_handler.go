package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aradsms/routing_engine/internal/routing_service/app"
	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// StatisticsProvider reports routing statistics. *app.StatisticsService satisfies it.
type StatisticsProvider interface {
	Statistics(ctx context.Context, filter domain.StatisticsFilter) (domain.Statistics, error)
}

// SnapshotRefresher rebuilds the routing snapshot on demand. *app.Refresher satisfies it.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// SnapshotReader exposes the snapshot in use. *app.SnapshotStore satisfies it.
type SnapshotReader interface {
	Current() *app.Snapshot
}

// RoutingHandler serves the routing admin endpoints.
type RoutingHandler struct {
	router    app.Router
	stats     StatisticsProvider
	refresher SnapshotRefresher
	snapshots SnapshotReader
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewRoutingHandler creates a new RoutingHandler.
func NewRoutingHandler(router app.Router, stats StatisticsProvider, refresher SnapshotRefresher, snapshots SnapshotReader, logger *slog.Logger) *RoutingHandler {
	return &RoutingHandler{
		router:    router,
		stats:     stats,
		refresher: refresher,
		snapshots: snapshots,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("handler", "routing"),
	}
}

// RegisterRoutes registers the routing endpoints. Snapshot refresh additionally requires an admin token.
func (h *RoutingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/test", h.handleTestRoute)
	r.Get("/statistics", h.handleStatistics)
	r.Get("/snapshot", h.handleGetSnapshot)
	r.With(RequireAdmin(h.logger)).Post("/snapshot/refresh", h.handleRefreshSnapshot)
}

func (h *RoutingHandler) handleTestRoute(w http.ResponseWriter, r *http.Request) {
	var req TestRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, "Request body is empty", http.StatusBadRequest)
			return
		}
		writeError(w, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	preview := h.router.TestRoute(r.Context(), req.toDomain())
	testRouteOutcomesTotal.WithLabelValues(string(preview.Decision.Outcome)).Inc()
	h.logger.InfoContext(r.Context(), "Test route evaluated",
		"msisdn", req.MSISDN, "routing_status", preview.Decision.Outcome, "smsc_code", preview.Decision.GatewayCode)
	writeJSON(w, http.StatusOK, newTestRouteResponse(preview))
}

func (h *RoutingHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStatisticsFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.stats.Statistics(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to compute routing statistics", "error", err)
		writeError(w, "Failed to compute routing statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *RoutingHandler) handleGetSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := h.snapshots.Current()
	if snap == nil {
		writeError(w, domain.ErrSnapshotNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func (h *RoutingHandler) handleRefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.refresher.Refresh(ctx); err != nil {
		writeError(w, "Snapshot refresh failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if user, ok := r.Context().Value(AuthenticatedUserContextKey).(AuthenticatedUser); ok {
		h.logger.InfoContext(r.Context(), "Snapshot refreshed on demand", "userID", user.ID)
	}
	writeJSON(w, http.StatusOK, snapshotResponse(h.snapshots.Current()))
}

func snapshotResponse(snap *app.Snapshot) SnapshotResponse {
	if snap == nil {
		return SnapshotResponse{}
	}
	return SnapshotResponse{
		Rules:     snap.RuleCount(),
		Gateways:  snap.GatewayCount(),
		Countries: snap.CountryCount(),
		LoadedAt:  snap.LoadedAt(),
	}
}

// parseStatisticsFilter reads customer_id, smsc_id, campaign_id, from and to (RFC 3339).
func parseStatisticsFilter(r *http.Request) (domain.StatisticsFilter, error) {
	q := r.URL.Query()
	var f domain.StatisticsFilter

	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid customer_id")
		}
		f.CustomerID = &id
	}
	if v := q.Get("smsc_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("invalid smsc_id")
		}
		f.GatewayID = &id
	}
	f.CampaignID = q.Get("campaign_id")
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid from: expected RFC 3339")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid to: expected RFC 3339")
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errors.New("to must not be before from")
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, GenericErrorResponse{Error: message})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: details})
}
