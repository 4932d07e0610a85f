package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/taskhub/internal/api/dto"
	"github.com/hugh/taskhub/internal/api/middleware"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/membership"
)

type UserHandler struct {
	members *membership.Service
	log     *slog.Logger
}

func NewUserHandler(members *membership.Service, log *slog.Logger) *UserHandler {
	return &UserHandler{members: members, log: orDiscard(log)}
}

// List returns the users of ?orgId. The caller must belong to that org.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryID(w, r, "orgId")
	if !ok {
		return
	}

	if !requireMember(w, r, h.members, h.log, orgID) {
		return
	}

	users, err := h.members.UsersByOrg(r.Context(), orgID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Create adds a user to an organization the caller administers, reusing an
// existing account with the same email.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	ctx := r.Context()
	admin, err := h.members.IsAdmin(ctx, req.OrgID, middleware.GetUserID(ctx))
	if err != nil {
		writeInternal(w, r, h.log, "Failed to add user", err)
		return
	}
	if !admin {
		forbidden(w)
		return
	}

	res, err := h.members.AddUserToOrganization(ctx, membership.AddUserInput{
		Name:  req.Name,
		Email: req.Email,
		OrgID: req.OrgID,
	})
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrOrgNotFound):
			writeError(w, http.StatusNotFound, "Organization not found")
		case errors.Is(err, models.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Name and email are required")
		default:
			writeInternal(w, r, h.log, "Failed to add user", err)
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.CreateUserResponse{
		User:       res.User,
		Membership: res.Member,
		Created:    res.Created,
	})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	if !h.authorize(w, r, id) {
		return
	}

	user, err := h.members.UpdateUser(r.Context(), id, req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, models.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "Email already exists")
		case errors.Is(err, models.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Name and email are required")
		default:
			writeInternal(w, r, h.log, "Failed to update user", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete removes the user row. Memberships and their tasks stay behind.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if !h.authorize(w, r, id) {
		return
	}

	if err := h.members.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeInternal(w, r, h.log, "Failed to delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted successfully"})
}

// authorize lets a user manage their own account, and an admin manage any
// account in an org they administer. It writes 404 or 403 itself.
func (h *UserHandler) authorize(w http.ResponseWriter, r *http.Request, targetID uint) bool {
	ctx := r.Context()

	if _, err := h.members.UserByID(ctx, targetID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return false
		}
		writeInternal(w, r, h.log, "Failed to load user", err)
		return false
	}

	callerID := middleware.GetUserID(ctx)
	if callerID == targetID {
		return true
	}

	ok, err := h.members.SharesOrgAsAdmin(ctx, callerID, targetID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to load user", err)
		return false
	}
	if !ok {
		forbidden(w)
		return false
	}
	return true
}
