package prices

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Tickertronix/Tickertronix-Open/internal/domain"
)

// Handler provides HTTP handlers for price endpoints
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new prices handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "prices").Logger(),
	}
}

// HandleList handles GET /prices
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.GetLatest(nil, "")
	if err != nil {
		h.writeRepoError(w, err, "Failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleListByClass handles GET /prices/{class}
func (h *Handler) HandleListByClass(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseAssetClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.repo.GetLatest(&class, "")
	if err != nil {
		h.writeRepoError(w, err, "Failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetSymbol handles GET /prices/{class}/{symbol}
func (h *Handler) HandleGetSymbol(w http.ResponseWriter, r *http.Request) {
	class, err := domain.ParseAssetClass(chi.URLParam(r, "class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	list, err := h.repo.GetLatest(&class, symbol)
	if err != nil {
		h.writeRepoError(w, err, "Failed to fetch price")
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("No data found for %s in %s", symbol, class.String()))
		return
	}
	writeJSON(w, http.StatusOK, list[0])
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, msg string) {
	var serr *domain.StoreError
	switch {
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
