package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

const maxContentLength = 2000

type ItemHandler struct {
	groupStore   *store.GroupStore
	listStore    *store.ListStore
	itemStore    *store.ItemStore
	commentStore *store.CommentStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewItemHandler(gs *store.GroupStore, ls *store.ListStore, is *store.ItemStore, cs *store.CommentStore, hub *websocket.Hub, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{groupStore: gs, listStore: ls, itemStore: is, commentStore: cs, hub: hub, logger: logger}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	if len(content) > maxContentLength {
		return "", apperr.Validation("content is too long")
	}
	return content, nil
}

// loadItem resolves the {id}/{listId}/{itemId} chain.
func (h *ItemHandler) loadItem(r *http.Request) (*model.List, *model.Item, error) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		return nil, nil, err
	}
	itemID, err := parseIDParam(r, "itemId")
	if err != nil {
		return nil, nil, err
	}
	item, err := h.itemStore.GetInList(l.ID, itemID)
	if err != nil {
		return nil, nil, apperr.Store("failed to load item", err)
	}
	if item == nil {
		return nil, nil, apperr.NotFound("item not found")
	}
	return l, item, nil
}

func (h *ItemHandler) broadcastItem(l *model.List, action string, itemID int64) {
	h.hub.Broadcast(l.GroupID, websocket.NewMessage(websocket.EntityItem, action, itemID, map[string]any{"list_id": l.ID}))
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, err := h.itemStore.ListByList(l.ID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list items", err))
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.itemStore.Create(l.ID, content)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create item", err))
		return
	}

	h.broadcastItem(l, "created", item.ID)
	writeJSON(w, http.StatusCreated, item)
}

// Update sets content and/or bought. bought is assigned, not flipped, so
// concurrent writers settle on the last value written.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	l, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Content *string `json:"content"`
		Bought  *bool   `json:"bought"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	bought := item.Bought
	if req.Bought != nil {
		bought = *req.Bought
	}

	var updated *model.Item
	if req.Content == nil {
		updated, err = h.itemStore.SetBought(item.ID, bought)
	} else {
		var content string
		if content, err = validateContent(*req.Content); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		updated, err = h.itemStore.Update(item.ID, content, bought)
	}
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to update item", err))
		return
	}

	h.broadcastItem(l, "updated", item.ID)
	writeJSON(w, http.StatusOK, updated)
}

// Toggle flips bought.
func (h *ItemHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	l, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.itemStore.ToggleBought(item.ID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to update item", err))
		return
	}
	if updated == nil {
		writeError(w, r, h.logger, apperr.NotFound("item not found"))
		return
	}

	h.broadcastItem(l, "updated", item.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	l, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.itemStore.Delete(item.ID); err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to delete item", err))
		return
	}

	h.broadcastItem(l, "deleted", item.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	_, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	comments, err := h.commentStore.ListByItem(item.ID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list comments", err))
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *ItemHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	l, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.commentStore.Create(item.ID, content)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create comment", err))
		return
	}

	h.hub.Broadcast(l.GroupID, websocket.NewMessage(websocket.EntityComment, "created", c.ID,
		map[string]any{"list_id": l.ID, "item_id": item.ID}))
	writeJSON(w, http.StatusCreated, c)
}

func (h *ItemHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	l, item, err := h.loadItem(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	commentID, err := parseIDParam(r, "commentId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.commentStore.GetInItem(item.ID, commentID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to load comment", err))
		return
	}
	if c == nil {
		writeError(w, r, h.logger, apperr.NotFound("comment not found"))
		return
	}

	if err := h.commentStore.Delete(c.ID); err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to delete comment", err))
		return
	}

	h.hub.Broadcast(l.GroupID, websocket.NewMessage(websocket.EntityComment, "deleted", c.ID,
		map[string]any{"list_id": l.ID, "item_id": item.ID}))
	w.WriteHeader(http.StatusNoContent)
}
