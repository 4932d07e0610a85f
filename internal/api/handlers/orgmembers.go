package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/taskhub/internal/api/middleware"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/membership"
)

type OrgMemberHandler struct {
	members *membership.Service
	log     *slog.Logger
}

func NewOrgMemberHandler(members *membership.Service, log *slog.Logger) *OrgMemberHandler {
	return &OrgMemberHandler{members: members, log: orDiscard(log)}
}

// ByOrg lists the memberships of ?orgId for a caller who belongs to it.
func (h *OrgMemberHandler) ByOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryID(w, r, "orgId")
	if !ok {
		return
	}
	if !requireMember(w, r, h.members, h.log, orgID) {
		return
	}

	members, err := h.members.MembersByOrg(r.Context(), orgID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list members", err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// ByUser lists the memberships of ?userId. Callers looking at someone else
// only see memberships in orgs they share.
func (h *OrgMemberHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryID(w, r, "userId")
	if !ok {
		return
	}

	ctx := r.Context()
	callerID := middleware.GetUserID(ctx)

	members, err := h.members.MembershipsByUser(ctx, userID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list memberships", err)
		return
	}
	if callerID == userID {
		writeJSON(w, http.StatusOK, members)
		return
	}

	mine, err := h.members.MembershipsByUser(ctx, callerID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list memberships", err)
		return
	}
	shared := make(map[uint]bool, len(mine))
	for _, m := range mine {
		shared[m.OrgID] = true
	}

	visible := make([]models.OrgMember, 0, len(members))
	for _, m := range members {
		if shared[m.OrgID] {
			visible = append(visible, m)
		}
	}
	if len(visible) == 0 {
		forbidden(w)
		return
	}
	writeJSON(w, http.StatusOK, visible)
}

// ByUserAndOrg returns the single membership of ?userId in ?orgId.
func (h *OrgMemberHandler) ByUserAndOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryID(w, r, "userId")
	if !ok {
		return
	}
	orgID, ok := queryID(w, r, "orgId")
	if !ok {
		return
	}
	if !requireMember(w, r, h.members, h.log, orgID) {
		return
	}

	member, err := h.members.MembershipByUserAndOrg(r.Context(), userID, orgID)
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotFound) {
			writeError(w, http.StatusNotFound, "Membership not found")
			return
		}
		writeInternal(w, r, h.log, "Failed to load membership", err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// requireMember writes a 403 unless the caller belongs to orgID.
func requireMember(w http.ResponseWriter, r *http.Request, members *membership.Service, log *slog.Logger, orgID uint) bool {
	ctx := r.Context()
	ok, err := members.IsMember(ctx, orgID, middleware.GetUserID(ctx))
	if err != nil {
		writeInternal(w, r, log, "Failed to check membership", err)
		return false
	}
	if !ok {
		forbidden(w)
		return false
	}
	return true
}

type OrganizationHandler struct {
	members *membership.Service
	log     *slog.Logger
}

func NewOrganizationHandler(members *membership.Service, log *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{members: members, log: orDiscard(log)}
}

// ByUser lists the organizations ?userId belongs to. Only the user
// themselves may ask.
func (h *OrganizationHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryID(w, r, "userId")
	if !ok {
		return
	}

	ctx := r.Context()
	if middleware.GetUserID(ctx) != userID {
		forbidden(w)
		return
	}

	orgs, err := h.members.OrganizationsByUser(ctx, userID)
	if err != nil {
		writeInternal(w, r, h.log, "Failed to list organizations", err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}
