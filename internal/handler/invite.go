package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

type InviteHandler struct {
	groupStore  *store.GroupStore
	inviteStore *store.InviteStore
	mailer      Mailer
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewInviteHandler(gs *store.GroupStore, is *store.InviteStore, mailer Mailer, hub *websocket.Hub, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{groupStore: gs, inviteStore: is, mailer: mailer, hub: hub, logger: logger}
}

type inviteResponse struct {
	*model.Invite
	Link      string `json:"link"`
	EmailSent bool   `json:"email_sent"`
}

// Create invites an email address to the group and mails the invite link.
// The invite is kept even if the email fails; the response carries the
// link so the owner can share it another way.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := auth.RequireOwner(r.Context(), h.groupStore, groupID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	emailAddr, err := parseEmail(req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.groupStore.GetByID(groupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load group", err))
		return
	}
	if g == nil {
		writeError(w, r, h.logger, apperr.NotFound("group not found"))
		return
	}

	inv, err := h.inviteStore.Create(groupID, emailAddr)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create invite", err))
		return
	}

	sent := true
	if err := h.mailer.SendInvite(r.Context(), emailAddr, g.Name, inv.Token); err != nil {
		h.logger.Error("send invite email", "invite_id", inv.ID, "error", err)
		sent = false
	}

	writeJSON(w, http.StatusCreated, inviteResponse{Invite: inv, Link: h.mailer.InviteLink(inv.Token), EmailSent: sent})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := auth.RequireOwner(r.Context(), h.groupStore, groupID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	invites, err := h.inviteStore.ListByGroup(groupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list invites", err))
		return
	}
	if invites == nil {
		invites = []model.Invite{}
	}
	writeJSON(w, http.StatusOK, invites)
}

type inviteSummary struct {
	ID        int64  `json:"id"`
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
	Email     string `json:"email"`
	Accepted  bool   `json:"accepted"`
}

// Lookup resolves an invite link token so the recipient can see what they
// are accepting.
func (h *InviteHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		writeError(w, r, h.logger, apperr.Validation("invalid token"))
		return
	}

	inv, err := h.inviteStore.GetByToken(token)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load invite", err))
		return
	}
	if inv == nil {
		writeError(w, r, h.logger, apperr.NotFound("invite not found"))
		return
	}

	g, err := h.groupStore.GetByID(inv.GroupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load group", err))
		return
	}
	if g == nil {
		writeError(w, r, h.logger, apperr.NotFound("invite not found"))
		return
	}

	writeJSON(w, http.StatusOK, inviteSummary{
		ID:        inv.ID,
		GroupID:   inv.GroupID,
		GroupName: g.Name,
		Email:     inv.Email,
		Accepted:  inv.Accepted,
	})
}

func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	inviteID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	m, err := auth.AcceptInvite(r.Context(), h.inviteStore, inviteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(m.GroupID, websocket.NewMessage(websocket.EntityGroup, "member_joined", m.GroupID,
		map[string]any{"user_id": m.UserID}))
	h.logger.Info("invite accepted", "invite_id", inviteID, "group_id", m.GroupID, "user_id", m.UserID)
	writeJSON(w, http.StatusOK, m)
}
