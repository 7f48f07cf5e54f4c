package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// EquitiesCredentialSink receives rotated equities/crypto provider
// credentials so the adapter picks them up without a restart.
type EquitiesCredentialSink interface {
	SetCredentials(key, secret string)
	VerifyCredentials(ctx context.Context) error
}

// ForexCredentialSink receives a rotated forex provider key.
type ForexCredentialSink interface {
	SetAPIKey(key string)
}

// Handler provides HTTP handlers for credential management
type Handler struct {
	repo     *Repository
	equities EquitiesCredentialSink
	forex    ForexCredentialSink
	log      zerolog.Logger
}

// NewHandler creates a new credentials handler
func NewHandler(repo *Repository, equities EquitiesCredentialSink, forex ForexCredentialSink, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		equities: equities,
		forex:    forex,
		log:      log.With().Str("handler", "credentials").Logger(),
	}
}

type credentialRequest struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// HandlePutCredential handles PUT /credentials/{provider}
func (h *Handler) HandlePutCredential(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}

	switch provider {
	case "alpaca":
		if req.Key == "" || req.Secret == "" {
			writeError(w, http.StatusBadRequest, "key and secret are required")
			return
		}
		if err := h.repo.Set(KeyAlpacaAPIKey, req.Key); err != nil {
			h.storeFailure(w, err)
			return
		}
		if err := h.repo.Set(KeyAlpacaAPISecret, req.Secret); err != nil {
			h.storeFailure(w, err)
			return
		}
		if h.equities != nil {
			h.equities.SetCredentials(req.Key, req.Secret)
		}

	case "twelvedata":
		if req.Key == "" {
			writeError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := h.repo.Set(KeyTwelveDataAPIKey, req.Key); err != nil {
			h.storeFailure(w, err)
			return
		}
		if h.forex != nil {
			h.forex.SetAPIKey(req.Key)
		}

	default:
		writeError(w, http.StatusNotFound, "unknown provider: "+provider)
		return
	}

	h.log.Info().Str("provider", provider).Msg("Credentials updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleVerifyCredential handles POST /credentials/alpaca/verify
func (h *Handler) HandleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	if h.equities == nil {
		writeError(w, http.StatusInternalServerError, "equities client not configured")
		return
	}

	if err := h.equities.VerifyCredentials(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Credential verification failed")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"valid":   false,
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"valid":  true,
	})
}

func (h *Handler) storeFailure(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Failed to persist credential")
	writeError(w, http.StatusServiceUnavailable, "Failed to persist credential")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
