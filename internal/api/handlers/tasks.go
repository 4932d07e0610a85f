package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/taskhub/internal/api/dto"
	"github.com/hugh/taskhub/internal/membership"
)

type TaskHandler struct {
	members *membership.Service
	log     *slog.Logger
}

func NewTaskHandler(members *membership.Service, log *slog.Logger) *TaskHandler {
	return &TaskHandler{members: members, log: orDiscard(log)}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	if !h.canAssign(w, r, req.OrgMemberID) {
		return
	}

	task, err := h.members.CreateTask(r.Context(), taskInput(req))
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotFound) {
			writeError(w, http.StatusNotFound, "Org member not found")
			return
		}
		writeInternal(w, r, h.log, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// List returns the tasks of ?orgId for a caller who belongs to it.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryID(w, r, "orgId")
	if !ok {
		return
	}

	if !requireMember(w, r, h.members, h.log, orgID) {
		return
	}

	tasks, err := h.members.TasksByOrg(r.Context(), orgID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Update replaces every field of the task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	if !h.canTouch(w, r, id) {
		return
	}
	if !h.canAssign(w, r, req.OrgMemberID) {
		return
	}

	task, err := h.members.UpdateTask(r.Context(), id, taskInput(req))
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, membership.ErrMembershipNotFound):
			writeError(w, http.StatusNotFound, "Org member not found")
		default:
			writeInternal(w, r, h.log, "Failed to update task", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if !h.canTouch(w, r, id) {
		return
	}

	if err := h.members.DeleteTask(r.Context(), id); err != nil {
		if errors.Is(err, membership.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeInternal(w, r, h.log, "Failed to delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted successfully"})
}

// canAssign checks that orgMemberID exists and that the caller belongs to
// its organization.
func (h *TaskHandler) canAssign(w http.ResponseWriter, r *http.Request, orgMemberID uint) bool {
	ctx := r.Context()
	m, err := h.members.MembershipByID(ctx, orgMemberID)
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotFound) {
			writeError(w, http.StatusNotFound, "Org member not found")
			return false
		}
		writeInternal(w, r, h.log, "Failed to load org member", err)
		return false
	}
	return requireMember(w, r, h.members, h.log, m.OrgID)
}

// canTouch checks that the task exists and that the caller belongs to the
// organization that owns it.
func (h *TaskHandler) canTouch(w http.ResponseWriter, r *http.Request, taskID uint) bool {
	task, err := h.members.TaskByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, membership.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return false
		}
		writeInternal(w, r, h.log, "Failed to load task", err)
		return false
	}
	return requireMember(w, r, h.members, h.log, task.OrgID)
}

func taskInput(req dto.TaskRequest) membership.TaskInput {
	return membership.TaskInput{
		Name:        req.Name,
		OrgMemberID: req.OrgMemberID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
	}
}
