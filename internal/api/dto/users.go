package dto

import (
	"strings"

	"github.com/hugh/taskhub/internal/api/validation"
	"github.com/hugh/taskhub/internal/database/models"
)

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	OrgID uint   `json:"orgId"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.OrgID == 0 {
		errors["orgId"] = "Organization ID is required"
	}

	return errors
}

func (r *CreateUserRequest) Normalize() {
	r.Name = validation.CleanText(r.Name, validation.MaxNameLength)
}

type CreateUserResponse struct {
	User       *models.User      `json:"user"`
	Membership *models.OrgMember `json:"membership"`
	Created    bool              `json:"created"`
}

type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r UpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}

	return errors
}

func (r *UpdateUserRequest) Normalize() {
	r.Name = validation.CleanText(r.Name, validation.MaxNameLength)
}
