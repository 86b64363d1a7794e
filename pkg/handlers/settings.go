package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/auth"
	"github.com/smartflowhq/growth-engine/pkg/repositories"
)

// SettingsHandler exposes per-tenant notification settings.
type SettingsHandler struct {
	settings repositories.SettingsRepository
	authMW   *auth.Middleware
	logger   *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings repositories.SettingsRepository, authMW *auth.Middleware, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		authMW:   authMW,
		logger:   logger.Named("settings-handler"),
	}
}

// RegisterRoutes registers the settings handler's routes on the given mux.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings/notifications", h.authMW.RequireTenant(h.Get))
	mux.HandleFunc("PUT /api/settings/notifications", h.authMW.RequireTenant(h.Update))
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	settings, err := h.settings.GetOrCreate(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("Failed to load notification settings",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	EmailEnabled        *bool `json:"email_enabled"`
	SMSEnabled          *bool `json:"sms_enabled"`
	ReminderHoursBefore *int  `json:"reminder_hours_before"`
}

// Update applies a partial settings change. Omitted fields keep their
// current values.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var body updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if body.ReminderHoursBefore != nil && (*body.ReminderHoursBefore < 1 || *body.ReminderHoursBefore > 168) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "reminder_hours_before must be between 1 and 168")
		return
	}

	settings, err := h.settings.GetOrCreate(r.Context(), tenantID)
	if err != nil {
		_ = ServiceError(w, err)
		return
	}

	if body.EmailEnabled != nil {
		settings.EmailEnabled = *body.EmailEnabled
	}
	if body.SMSEnabled != nil {
		settings.SMSEnabled = *body.SMSEnabled
	}
	if body.ReminderHoursBefore != nil {
		settings.ReminderHoursBefore = *body.ReminderHoursBefore
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := h.settings.Update(r.Context(), settings); err != nil {
		h.logger.Error("Failed to update notification settings",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		_ = ServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, settings)
}
