package assets

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Handler provides HTTP handlers for watchlist endpoints
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new assets handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "assets").Logger(),
	}
}

// HandleList handles GET /assets
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var class *domain.AssetClass
	if raw := r.URL.Query().Get("class"); raw != "" {
		parsed, err := domain.ParseAssetClass(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		class = &parsed
	}

	list, err := h.repo.List(class, true)
	if err != nil {
		h.writeRepoError(w, err, "Failed to list assets")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleAdd handles POST /assets
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}

	class, err := domain.ParseAssetClass(req.AssetClass)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Add(req.Symbol, class); err != nil {
		h.writeRepoError(w, err, "Failed to add asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRemove handles DELETE /assets/{class}/{symbol}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseAssetClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Remove(chi.URLParam(r, "symbol"), class); err != nil {
		h.writeRepoError(w, err, "Failed to remove asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSetEnabled handles PUT /assets/{class}/{symbol}/enabled
func (h *Handler) HandleSetEnabled(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseAssetClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}

	if err := h.repo.SetEnabled(chi.URLParam(r, "symbol"), class, req.Enabled); err != nil {
		h.writeRepoError(w, err, "Failed to update asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, msg string) {
	var verr *domain.ValidationError
	var serr *domain.StoreError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Asset not found")
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
