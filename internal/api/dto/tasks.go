package dto

import (
	"strings"

	"github.com/hugh/taskhub/internal/api/validation"
)

// TaskRequest is the body of both create and full-replace update.
type TaskRequest struct {
	Name        string `json:"name"`
	OrgMemberID uint   `json:"org_member_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

func (r TaskRequest) Validate() map[string]string {
	errors := validation.ValidateDateRange(r.StartDate, r.EndDate)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if r.OrgMemberID == 0 {
		errors["org_member_id"] = "Org member ID is required"
	}

	return errors
}

func (r *TaskRequest) Normalize() {
	r.Name = validation.CleanText(r.Name, validation.MaxNameLength)
	r.Description = validation.CleanText(r.Description, validation.MaxDescriptionLength)
}
