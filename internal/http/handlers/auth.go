package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/classchat/server/internal/auth"
	"github.com/classchat/server/internal/mail"
	"github.com/classchat/server/internal/middleware"
	"github.com/classchat/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService   *auth.AuthService
	resetService  *auth.ResetService
	loginLimiter  *middleware.RateLimiter
	forgotLimiter *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, resetService *auth.ResetService) *AuthHandler {
	// IP rate limiters: 20 login attempts and 5 forgot requests per 10 min
	return &AuthHandler{
		authService:   authService,
		resetService:  resetService,
		loginLimiter:  middleware.NewRateLimiter(10*time.Minute, 20),
		forgotLimiter: middleware.NewRateLimiter(10*time.Minute, 5),
	}
}

// registerRequest is the request body for POST /register
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the request body for POST /login
type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// forgotRequest is the request body for POST /forgot
type forgotRequest struct {
	Email string `json:"email"`
}

// resetRequest is the request body for POST /reset
type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// langRequest is the request body for PATCH /lang
type langRequest struct {
	Language string `json:"language"`
}

// userResponse is the user object in API responses. Password hash and
// reset-code state are never part of it.
type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Language  *string   `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// tokenResponse is the JSON response for register and login
type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// forgotResponse is the JSON response for forgot. Code is only present
// outside production.
type forgotResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func toUserResponse(user model.User) userResponse {
	return userResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Language:  user.Language,
		CreatedAt: user.CreatedAt,
	}
}

// HandleRegister handles POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "missing fields")
		return
	}

	user, token, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateIdentity) {
			respondWithError(w, http.StatusBadRequest, "username or email already exists")
			return
		}
		log.Printf("Registration failed for %s: %v", mail.MaskEmail(req.Email), err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserResponse(user)})
}

// HandleLogin handles POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "missing fields")
		return
	}

	if !h.loginLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		log.Printf("Login failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserResponse(user)})
}

// HandleForgot handles POST /forgot
func (h *AuthHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "email required")
		return
	}

	if !h.forgotLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	code, err := h.resetService.RequestCode(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownEmail) {
			respondWithError(w, http.StatusBadRequest, "no account with that email")
			return
		}
		log.Printf("Reset code request failed for %s: %v", mail.MaskEmail(req.Email), err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, forgotResponse{Message: "reset code generated", Code: code})
}

// HandleReset handles POST /reset
func (h *AuthHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "missing fields")
		return
	}

	if err := h.resetService.ConsumeCode(r.Context(), req.Email, req.Code, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredCode) {
			respondWithError(w, http.StatusBadRequest, "invalid or expired code")
			return
		}
		log.Printf("Password reset failed for %s: %v", mail.MaskEmail(req.Email), err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

// HandleLang handles PATCH /lang (protected)
func (h *AuthHandler) HandleLang(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req langRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.authService.ChangeLanguage(r.Context(), user.ID, req.Language)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLanguage) {
			respondWithError(w, http.StatusBadRequest, "invalid language")
			return
		}
		log.Printf("Language change failed for %s: %v", user.Username, err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]userResponse{"user": toUserResponse(updated)})
}

// respondWithJSON writes a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
