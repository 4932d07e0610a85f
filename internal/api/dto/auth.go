package dto

import (
	"strings"

	"github.com/hugh/taskhub/internal/api/validation"
)

type SignupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r SignupRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}

	return errors
}

// Normalize cleans the display name. The email is kept exactly as sent.
func (r *SignupRequest) Normalize() {
	r.Name = validation.CleanText(r.Name, validation.MaxNameLength)
}

type SignupResponse struct {
	Message string `json:"message"`
	UserID  uint   `json:"user_id"`
	OTP     string `json:"otp"`
}

type VerifyOTPRequest struct {
	UserID   uint   `json:"user_id"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

func (r VerifyOTPRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.UserID == 0 {
		errors["user_id"] = "User ID is required"
	}
	if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type LoginResponse struct {
	UserID     uint   `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	OrgID      *uint  `json:"orgId"`
	AccessRole string `json:"accessRole"`
	Token      string `json:"token"`
}
