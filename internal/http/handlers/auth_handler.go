package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/http/middleware"
	"github.com/shelfwise/lending/internal/http/response"
)

// RequestOTP issues a one-time passcode to the given email. The
// response does not reveal whether the email is known.
func (h *Handlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	if err := h.authService.IssueOTP(r.Context(), &req, middleware.ClientIP(r)); err != nil {
		response.FromError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Sign-in code sent to your email",
	})
}

// Login exchanges email + code for a signed session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	token, expiresIn, err := h.authService.AuthenticateOTP(r.Context(), &req, middleware.ClientIP(r))
	if err != nil {
		response.FromError(w, err)
		return
	}

	middleware.SetSessionCookie(w, token, int(h.authService.SessionTTL().Seconds()))
	response.WriteJSON(w, http.StatusOK, domain.SessionResponse{ExpiresIn: expiresIn})
}

// Logout clears the session cookie. Tokens are stateless, so the cookie
// removal is the whole operation.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w)
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
