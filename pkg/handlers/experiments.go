package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/auth"
	"github.com/smartflowhq/growth-engine/pkg/models"
	"github.com/smartflowhq/growth-engine/pkg/services"
)

// ExperimentHandler exposes the experiment engine over HTTP.
type ExperimentHandler struct {
	svc    services.ExperimentService
	authMW *auth.Middleware
	logger *zap.Logger
}

// NewExperimentHandler creates a new ExperimentHandler.
func NewExperimentHandler(svc services.ExperimentService, authMW *auth.Middleware, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{
		svc:    svc,
		authMW: authMW,
		logger: logger.Named("experiment-handler"),
	}
}

// RegisterRoutes registers the experiment handler's routes on the given mux.
func (h *ExperimentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/experiments", h.authMW.RequireTenant(h.Create))
	mux.HandleFunc("GET /api/experiments", h.authMW.RequireTenant(h.List))
	mux.HandleFunc("GET /api/experiments/{id}", h.authMW.RequireTenant(h.Get))
	mux.HandleFunc("POST /api/experiments/{id}/start", h.authMW.RequireTenant(h.Start))
	mux.HandleFunc("POST /api/experiments/{id}/pause", h.authMW.RequireTenant(h.Pause))
	mux.HandleFunc("POST /api/experiments/{id}/complete", h.authMW.RequireTenant(h.Complete))
	mux.HandleFunc("POST /api/experiments/{id}/impressions", h.authMW.RequireTenant(h.RecordImpression))
	mux.HandleFunc("POST /api/experiments/{id}/conversions", h.authMW.RequireTenant(h.RecordConversion))
	mux.HandleFunc("GET /api/experiments/{id}/results", h.authMW.RequireTenant(h.Results))
}

func (h *ExperimentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var input services.CreateExperimentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	input.TenantID = tenantID

	exp, err := h.svc.Create(r.Context(), input)
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, exp)
}

func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	experiments, err := h.svc.List(r.Context(), tenantID, r.URL.Query().Get("status"))
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{
		"experiments": experiments,
		"count":       len(experiments),
	})
}

func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	exp, err := h.svc.Get(r.Context(), id)
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, exp)
}

func (h *ExperimentHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Start)
}

func (h *ExperimentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Pause)
}

func (h *ExperimentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

type recordingRequest struct {
	VariantID string  `json:"variant_id"`
	Revenue   float64 `json:"revenue,omitempty"`
}

func (h *ExperimentHandler) RecordImpression(w http.ResponseWriter, r *http.Request) {
	id, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	var body recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "variant_id is required")
		return
	}

	if err := h.svc.RecordImpression(r.Context(), id, body.VariantID); err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *ExperimentHandler) RecordConversion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	var body recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "variant_id is required")
		return
	}

	if err := h.svc.RecordConversion(r.Context(), id, body.VariantID, body.Revenue); err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *ExperimentHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	results, err := h.svc.Results(r.Context(), id)
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, results)
}

// transition runs one lifecycle change and writes the updated experiment.
func (h *ExperimentHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (*models.Experiment, error)) {
	id, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	exp, err := op(r.Context(), id)
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, exp)
}

// experimentID parses the {id} path parameter, writing a 400 on failure.
func (h *ExperimentHandler) experimentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid experiment id")
		return uuid.Nil, false
	}
	return id, true
}
