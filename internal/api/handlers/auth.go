package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/hugh/taskhub/internal/api/dto"
	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/metrics"
)

type AuthHandler struct {
	authService *auth.Service
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewAuthHandler wires the signup, verification and login endpoints. m may
// be nil.
func NewAuthHandler(authService *auth.Service, m *metrics.Metrics, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: m, log: orDiscard(log)}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		h.metrics.AuthEvent("signup", "invalid")
		writeValidation(w, errors)
		return
	}

	res, err := h.authService.Signup(r.Context(), auth.SignupInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		var throttled *auth.ThrottleError
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			h.metrics.AuthEvent("signup", "duplicate_email")
			writeError(w, http.StatusConflict, "Email already exists")
		case errors.As(err, &throttled):
			h.metrics.AuthEvent("signup", "throttled")
			secs := int(math.Ceil(throttled.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "Too many verification codes requested")
		case errors.Is(err, auth.ErrOTPThrottled):
			h.metrics.AuthEvent("signup", "throttled")
			writeError(w, http.StatusTooManyRequests, "Too many verification codes requested")
		case errors.Is(err, models.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Name and email are required")
		default:
			h.metrics.AuthEvent("signup", "error")
			writeInternal(w, r, h.log, "Signup failed", err)
		}
		return
	}

	h.metrics.AuthEvent("signup", "ok")
	writeJSON(w, http.StatusCreated, dto.SignupResponse{
		Message: "User created successfully. Please verify your email.",
		UserID:  res.UserID,
		OTP:     res.Code,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		h.metrics.AuthEvent("verify_otp", "invalid")
		writeValidation(w, errors)
		return
	}

	err := h.authService.VerifyOTP(r.Context(), auth.VerifyOTPInput{
		UserID:   req.UserID,
		Code:     req.OTP,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrOTPExpired):
			h.metrics.AuthEvent("verify_otp", "expired")
			writeError(w, http.StatusBadRequest, "OTP expired.")
		case errors.Is(err, auth.ErrInvalidOTP):
			h.metrics.AuthEvent("verify_otp", "invalid_code")
			writeError(w, http.StatusBadRequest, "Invalid OTP.")
		case errors.Is(err, auth.ErrPasswordRequired), errors.Is(err, auth.ErrPasswordTooLong):
			writeValidation(w, map[string]string{"password": err.Error()})
		case errors.Is(err, models.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			h.metrics.AuthEvent("verify_otp", "error")
			writeInternal(w, r, h.log, "Verification failed", err)
		}
		return
	}

	h.metrics.AuthEvent("verify_otp", "ok")
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Email verified and password set successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		h.metrics.AuthEvent("login", "invalid")
		writeValidation(w, errors)
		return
	}

	res, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailNotFound):
			h.metrics.AuthEvent("login", "email_not_found")
			writeError(w, http.StatusBadRequest, "Email not found")
		case errors.Is(err, auth.ErrIncorrectPassword):
			h.metrics.AuthEvent("login", "incorrect_password")
			writeError(w, http.StatusBadRequest, "Incorrect password")
		default:
			h.metrics.AuthEvent("login", "error")
			writeInternal(w, r, h.log, "Login failed", err)
		}
		return
	}

	h.metrics.AuthEvent("login", "ok")
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		UserID:     res.User.ID,
		Name:       res.User.Name,
		Email:      res.User.Email,
		OrgID:      res.User.OrgID,
		AccessRole: res.User.AccessRole,
		Token:      res.Token,
	})
}
