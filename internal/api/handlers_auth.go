package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dgallion1/aquasens/internal/account"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) writeSession(w http.ResponseWriter, code int, u *account.User) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		s.log.Error("issue token", "user_id", u.ID, "error", err)
		jsonError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, code, map[string]any{
		"token": token,
		"user":  u,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req account.Signup
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	u, err := s.accounts.Register(r.Context(), req)
	switch {
	case errors.Is(err, account.ErrInvalidSignup):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, account.ErrEmailTaken):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.log.Error("register account", "error", err)
		jsonError(w, "signup failed", http.StatusInternalServerError)
		return
	}
	s.log.Info("account created", "user_id", u.ID)
	s.writeSession(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	u, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		jsonError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.log.Error("authenticate", "error", err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}
	s.writeSession(w, http.StatusOK, u)
}

// handleMe returns the account behind a user token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if p.Service {
		jsonError(w, "service key has no account", http.StatusBadRequest)
		return
	}
	u, err := s.accounts.Get(r.Context(), p.UserID)
	if errors.Is(err, account.ErrNotFound) {
		jsonError(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get account", "user_id", p.UserID, "error", err)
		jsonError(w, "failed to load account", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// actingUser resolves the user a request reads or writes for. requested is
// the caller-supplied user_id, which a user token may only repeat.
func (s *Server) actingUser(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	p := principalFrom(r)
	if p.Service {
		if requested == "" {
			jsonError(w, "user_id is required with the service key", http.StatusBadRequest)
			return "", false
		}
		return requested, true
	}
	if requested != "" && requested != p.UserID {
		jsonError(w, "user_id does not match token", http.StatusForbidden)
		return "", false
	}
	return p.UserID, true
}

// canAccess reports whether the request may see data owned by ownerID.
func canAccess(r *http.Request, ownerID string) bool {
	p := principalFrom(r)
	return p.Service || p.UserID == ownerID
}
