package devices

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Handler provides HTTP handlers for device endpoints
type Handler struct {
	repo *Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewHandler creates a new devices handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "devices").Logger(),
		now:  time.Now,
	}
}

// HandleGetSettings handles GET /device/{deviceID}/settings.
// Unknown devices are registered on the spot with defaults; known metadata
// is preserved unless the query overrides it.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	name, deviceType, err := h.resolveMetadata(deviceID,
		r.URL.Query().Get("device_name"), r.URL.Query().Get("device_type"))
	if err != nil {
		h.writeRepoError(w, err, "Failed to load device")
		return
	}

	if err := h.repo.Register(deviceID, name, deviceType, h.now()); err != nil {
		h.writeRepoError(w, err, "Failed to register device")
		return
	}

	settings, err := h.repo.GetSettings(deviceID)
	if err != nil {
		h.writeRepoError(w, err, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles POST /device/{deviceID}/settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}

	patch, err := ParseSettingsPatch(raw)
	if err != nil {
		h.writeRepoError(w, err, "Failed to update settings")
		return
	}

	name, deviceType, err := h.resolveMetadata(deviceID, "", "")
	if err != nil {
		h.writeRepoError(w, err, "Failed to load device")
		return
	}
	if err := h.repo.Register(deviceID, name, deviceType, h.now()); err != nil {
		h.writeRepoError(w, err, "Failed to register device")
		return
	}

	if err := h.repo.UpdateSettings(deviceID, patch, h.now()); err != nil {
		h.writeRepoError(w, err, "Failed to update settings")
		return
	}

	h.log.Info().Str("device_id", deviceID).Msg("Device settings updated")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Settings updated successfully",
	})
}

type heartbeatRequest struct {
	DeviceType string `json:"device_type"`
	DeviceName string `json:"device_name"`
}

// HandleHeartbeat handles POST /device/{deviceID}/heartbeat.
// The response carries the settings watermark so the device can decide
// whether to re-fetch its configuration.
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req heartbeatRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	name, deviceType, err := h.resolveMetadata(deviceID, req.DeviceName, req.DeviceType)
	if err != nil {
		h.writeRepoError(w, err, "Failed to load device")
		return
	}
	if err := h.repo.Register(deviceID, name, deviceType, h.now()); err != nil {
		h.writeRepoError(w, err, "Failed to register device")
		return
	}

	settings, err := h.repo.GetSettings(deviceID)
	if err != nil {
		h.writeRepoError(w, err, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":              "ok",
		"settings_updated_at": settings.UpdatedAt,
	})
}

// HandleTouch handles POST /device/{deviceID}/settings/touch
func (h *Handler) HandleTouch(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if err := h.repo.Touch(deviceID, h.now()); err != nil {
		h.writeRepoError(w, err, "Failed to touch settings")
		return
	}

	settings, err := h.repo.GetSettings(deviceID)
	if err != nil {
		h.writeRepoError(w, err, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":              "ok",
		"settings_updated_at": settings.UpdatedAt,
	})
}

// HandleList handles GET /devices
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List()
	if err != nil {
		h.writeRepoError(w, err, "Failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSetEnabled handles PUT /device/{deviceID}/enabled
func (h *Handler) HandleSetEnabled(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}

	if err := h.repo.SetEnabled(deviceID, req.Enabled); err != nil {
		h.writeRepoError(w, err, "Failed to update device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveMetadata picks the device name/type to register with: explicit
// override first, then whatever is already stored, then the defaults.
func (h *Handler) resolveMetadata(deviceID, nameOverride, typeOverride string) (name, deviceType string, err error) {
	existing, err := h.repo.Get(deviceID)
	if err != nil {
		return "", "", err
	}

	name = nameOverride
	if name == "" && existing != nil && existing.DeviceName != "" {
		name = existing.DeviceName
	}
	if name == "" {
		name = DefaultDeviceName(deviceID)
	}

	deviceType = typeOverride
	if deviceType == "" && existing != nil && existing.DeviceType != "" {
		deviceType = existing.DeviceType
	}
	if deviceType == "" {
		deviceType = DefaultDeviceType
	}
	return name, deviceType, nil
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, msg string) {
	var verr *domain.ValidationError
	var serr *domain.StoreError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Device not found")
	case errors.As(err, &serr):
		h.log.Error().Err(err).Msg(msg)
		writeError(w, http.StatusServiceUnavailable, msg)
	default:
		h.log.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
