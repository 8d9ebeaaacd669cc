package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type HTTPHandler struct {
	manager Service
	tickets *Ticketer
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

// sessionResponse answers register, login and guest: the account as a
// table sees it plus the session that owns it.
type sessionResponse struct {
	Account
	SessionToken string `json:"sessionToken"`
	Reused       bool   `json:"reused,omitempty"`
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int64  `json:"expires_in"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPHandler serves the account routes. tickets may be nil, in which
// case /api/auth/ticket answers 503.
func NewHTTPHandler(manager Service, tickets *Ticketer) *HTTPHandler {
	return &HTTPHandler{manager: manager, tickets: tickets}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/auth/profile", h.handleProfile)
	mux.HandleFunc("/api/auth/guest", h.handleGuest)
	mux.HandleFunc("/api/auth/ticket", h.handleTicket)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, sessionToken, err := h.manager.Register(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "register failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Account: acct, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, sessionToken, err := h.manager.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Account: acct, SessionToken: sessionToken})
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	h.manager.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	acct, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// handleProfile renames the caller; the new name shows on the next seat.
func (h *HTTPHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	acct, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acct, err := h.manager.SetDisplayName(acct.ID, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrInvalidDisplayName) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "profile update failed")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// sessionAccount resolves the bearer token or answers 401.
func (h *HTTPHandler) sessionAccount(w http.ResponseWriter, r *http.Request) (Account, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return Account{}, false
	}
	acct, ok := h.manager.ResolveSession(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return Account{}, false
	}
	return acct, true
}

func (h *HTTPHandler) handleGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	acct, sessionToken, reused := h.manager.ResolveOrCreateGuest(token)
	if acct.ID == 0 {
		writeError(w, http.StatusInternalServerError, "guest login failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Account: acct, SessionToken: sessionToken, Reused: reused})
}

func (h *HTTPHandler) handleTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.tickets == nil {
		writeError(w, http.StatusServiceUnavailable, "tickets disabled")
		return
	}

	acct, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ticket, err := h.tickets.Issue(acct.ID, acct.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ticket failed")
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse{
		Ticket:    ticket,
		ExpiresIn: int64(h.tickets.ttl / time.Second),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func bearerToken(raw string) string {
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
