package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	refreshCookieName = "refresh_token"
	// Covers both /auth/refresh and /auth/logout, the two endpoints that
	// redeem or revoke the cookie.
	refreshCookiePath = "/auth"
	minPasswordLength = 8
	// bcrypt rejects anything longer than 72 bytes.
	maxPasswordLength = 72
	maxNameLength     = 255
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type googleRequest struct {
	IDToken string `json:"id_token"`
}

type facebookRequest struct {
	AccessToken string `json:"access_token"`
}

type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type authResponse struct {
	AccessToken        string    `json:"access_token"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	body.Email = strings.TrimSpace(body.Email)

	switch {
	case body.FirstName == "" || len(body.FirstName) > maxNameLength:
		writeError(w, http.StatusBadRequest, "first name is required")
		return
	case body.LastName == "" || len(body.LastName) > maxNameLength:
		writeError(w, http.StatusBadRequest, "last name is required")
		return
	case !emailRegex.MatchString(body.Email) || len(body.Email) > maxNameLength:
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	case len(body.Password) < minPasswordLength || len(body.Password) > maxPasswordLength:
		writeError(w, http.StatusBadRequest, "password must be between 8 and 72 characters")
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Password:  body.Password,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		captureError(w, err, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		captureError(w, err, "failed to login")
		return
	}

	h.writeAuthResult(w, result)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := refreshTokenFromRequest(w, r)

	result, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			writeError(w, http.StatusUnauthorized, "invalid, expired, or revoked refresh token")
			return
		}
		captureError(w, err, "failed to refresh token")
		return
	}

	h.writeAuthResult(w, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	presented := refreshTokenFromRequest(w, r)
	if presented == "" {
		writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	if err := h.service.Logout(r.Context(), presented); err != nil {
		captureError(w, err, "failed to logout")
		return
	}

	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var body googleRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.IDToken) == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	result, err := h.service.GoogleSignIn(r.Context(), body.IDToken)
	if err != nil {
		if errors.Is(err, ErrInvalidExternalToken) {
			writeError(w, http.StatusUnauthorized, "invalid google id token")
			return
		}
		captureError(w, err, "failed google sign-in")
		return
	}

	h.writeAuthResult(w, result)
}

func (h *Handler) FacebookSignIn(w http.ResponseWriter, r *http.Request) {
	var body facebookRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.AccessToken) == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	result, err := h.service.FacebookSignIn(r.Context(), body.AccessToken)
	if err != nil {
		if errors.Is(err, ErrInvalidExternalToken) {
			writeError(w, http.StatusUnauthorized, "invalid facebook access token")
			return
		}
		captureError(w, err, "failed facebook sign-in")
		return
	}

	h.writeAuthResult(w, result)
}

func (h *Handler) writeAuthResult(w http.ResponseWriter, result AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    result.RefreshToken,
		Expires:  result.RefreshTokenExpiry,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:        result.AccessToken,
		AccessTokenExpiry:  result.AccessTokenExpiry,
		RefreshToken:       result.RefreshToken,
		RefreshTokenExpiry: result.RefreshTokenExpiry,
		UserID:             result.UserID,
		Email:              result.Email,
	})
}

// refreshTokenFromRequest prefers the http-only cookie and falls back to the
// JSON body for non-browser clients.
func refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.RefreshToken)
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func captureError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
