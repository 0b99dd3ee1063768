package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

const maxNameLength = 200

type GroupHandler struct {
	groupStore *store.GroupStore
	granter    *auth.Granter
	hub        *websocket.Hub
	origins    []string
	logger     *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, granter *auth.Granter, hub *websocket.Hub, origins []string, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groupStore: gs, granter: granter, hub: hub, origins: origins, logger: logger}
}

type groupResponse struct {
	*model.Group
	Role string   `json:"role"`
	Via  auth.Via `json:"via"`
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if len(password) > 72 {
		return "", apperr.Validation("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Store("failed to hash password", err)
	}
	return string(hash), nil
}

// authorize parses the {id} path value and resolves the caller's access.
func (h *GroupHandler) authorize(r *http.Request, check func(*http.Request, int64) (auth.Access, error)) (auth.Access, error) {
	groupID, err := parseIDParam(r, "id")
	if err != nil {
		return auth.Access{}, err
	}
	return check(r, groupID)
}

func (h *GroupHandler) anyAccess(r *http.Request, groupID int64) (auth.Access, error) {
	return auth.Authorize(r.Context(), h.groupStore, groupID)
}

func (h *GroupHandler) memberAccess(r *http.Request, groupID int64) (auth.Access, error) {
	return auth.RequireMember(r.Context(), h.groupStore, groupID)
}

func (h *GroupHandler) ownerAccess(r *http.Request, groupID int64) (auth.Access, error) {
	return auth.RequireOwner(r.Context(), h.groupStore, groupID)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupStore.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list groups", err))
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Password     string `json:"password"`
		PasswordHash string `json:"password_hash"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, h.logger, apperr.Validation("name is required"))
		return
	}
	if len(name) > maxNameLength {
		writeError(w, r, h.logger, apperr.Validation("name is too long"))
		return
	}

	password := req.Password
	if password == "" {
		password = req.PasswordHash
	}
	hash, err := hashPassword(password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.groupStore.Create(name, hash, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create group", err))
		return
	}

	h.logger.Info("group created", "group_id", g.ID, "user_id", auth.UserID(r.Context()))
	writeJSON(w, http.StatusCreated, groupResponse{Group: g, Role: model.RoleOwner, Via: auth.ViaSession})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	access, err := h.authorize(r, h.anyAccess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.groupStore.GetByID(access.GroupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load group", err))
		return
	}
	if g == nil {
		writeError(w, r, h.logger, apperr.NotFound("group not found"))
		return
	}
	writeJSON(w, http.StatusOK, groupResponse{Group: g, Role: access.Role, Via: access.Via})
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	access, err := h.authorize(r, h.ownerAccess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.groupStore.Delete(access.GroupID); err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to delete group", err))
		return
	}

	h.hub.Broadcast(access.GroupID, websocket.NewMessage(websocket.EntityGroup, "deleted", access.GroupID, nil))
	h.logger.Info("group deleted", "group_id", access.GroupID)
	w.WriteHeader(http.StatusNoContent)
}

// SetPassword sets or, with an empty password, clears the group password.
func (h *GroupHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	access, err := h.authorize(r, h.ownerAccess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.groupStore.SetPasswordHash(access.GroupID, hash); err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to set password", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	access, err := h.authorize(r, h.memberAccess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	members, err := h.groupStore.ListMembers(access.GroupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list members", err))
		return
	}
	if members == nil {
		members = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Unlock checks the group password and, on success, adds the group to the
// caller's grant cookie.
func (h *GroupHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Password == "" {
		writeError(w, r, h.logger, apperr.Validation("password is required"))
		return
	}

	g, err := h.groupStore.GetByID(groupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load group", err))
		return
	}
	if g == nil || !g.HasPassword {
		writeError(w, r, h.logger, apperr.NotFound("group not found"))
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(req.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		writeError(w, r, h.logger, apperr.Unauthorized("incorrect password"))
		return
	}
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to check password", err))
		return
	}

	ac, _ := auth.FromContext(r.Context())
	grants := ac.Grants()
	grants[groupID] = auth.PasswordKey(g.PasswordHash)
	token, err := h.granter.Issue(grants)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to issue grant", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.GrantCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.GrantTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// WebSocket streams change notifications for the group.
func (h *GroupHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	access, err := h.authorize(r, h.anyAccess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	websocket.Serve(w, r, h.hub, access.GroupID, h.origins, h.logger)
}
