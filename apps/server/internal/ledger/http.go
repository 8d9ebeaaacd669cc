package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xidach-lite/apps/server/internal/auth"
)

const roundsPrefix = "/api/audit/rounds/"

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{
		auth:   authService,
		ledger: ledgerService,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/audit/rounds/recent", h.handleRecent)
	mux.HandleFunc(roundsPrefix, h.handleRounds)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := h.resolveUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListRecent(ctx, strconv.FormatUint(userID, 10), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query recent rounds failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

func (h *HTTPHandler) handleRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := h.resolveUserID(r); !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	path := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, roundsPrefix))
	if path == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	parts := strings.Split(path, "/")
	roundID := strings.TrimSpace(parts[0])
	if roundID == "" {
		writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	switch {
	case len(parts) == 1:
		h.handleGetRound(w, r, roundID)
	case len(parts) == 2 && parts[1] == "verify":
		h.handleVerifyRound(w, r, roundID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *HTTPHandler) loadRound(w http.ResponseWriter, r *http.Request, roundID string) (*RoundDetail, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	detail, err := h.ledger.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "query round failed")
		return nil, false
	}
	return detail, true
}

func (h *HTTPHandler) handleGetRound(w http.ResponseWriter, r *http.Request, roundID string) {
	detail, ok := h.loadRound(w, r, roundID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *HTTPHandler) handleVerifyRound(w http.ResponseWriter, r *http.Request, roundID string) {
	detail, ok := h.loadRound(w, r, roundID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, VerifyRound(detail))
}

func (h *HTTPHandler) resolveUserID(r *http.Request) (uint64, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return 0, false
	}
	acct, ok := h.auth.ResolveSession(token)
	if !ok {
		return 0, false
	}
	return acct.ID, true
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
