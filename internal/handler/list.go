package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/giftlist/internal/apperr"
	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/ordering"
	"github.com/dukerupert/giftlist/internal/store"
	"github.com/dukerupert/giftlist/internal/websocket"
)

const countConcurrency = 4

// ItemCounter reports how many items a list has and how many are bought.
type ItemCounter interface {
	Counts(listID int64) (total, bought int, err error)
}

type ListHandler struct {
	groupStore *store.GroupStore
	listStore  *store.ListStore
	itemStore  ItemCounter
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewListHandler(gs *store.GroupStore, ls *store.ListStore, is ItemCounter, hub *websocket.Hub, logger *slog.Logger) *ListHandler {
	return &ListHandler{groupStore: gs, listStore: ls, itemStore: is, hub: hub, logger: logger}
}

// groupAccess authorizes the caller for the {id} group.
func groupAccess(r *http.Request, groups auth.GroupReader) (auth.Access, error) {
	groupID, err := parseIDParam(r, "id")
	if err != nil {
		return auth.Access{}, err
	}
	return auth.Authorize(r.Context(), groups, groupID)
}

// loadList authorizes the caller and loads the {listId} list of the {id} group.
func loadList(r *http.Request, groups auth.GroupReader, lists *store.ListStore) (*model.List, error) {
	access, err := groupAccess(r, groups)
	if err != nil {
		return nil, err
	}
	listID, err := parseIDParam(r, "listId")
	if err != nil {
		return nil, err
	}
	l, err := lists.GetInGroup(access.GroupID, listID)
	if err != nil {
		return nil, apperr.Store("failed to load list", err)
	}
	if l == nil {
		return nil, apperr.NotFound("list not found")
	}
	return l, nil
}

// annotateCounts fills in item counts for each list. A failed count leaves
// that list at zero.
func (h *ListHandler) annotateCounts(r *http.Request, lists []model.List) {
	var g errgroup.Group
	g.SetLimit(countConcurrency)
	for i := range lists {
		g.Go(func() error {
			total, bought, err := h.itemStore.Counts(lists[i].ID)
			if err != nil {
				h.logger.WarnContext(r.Context(), "count items", "list_id", lists[i].ID, "error", err)
				return nil
			}
			lists[i].TotalItems = total
			lists[i].BoughtItems = bought
			return nil
		})
	}
	g.Wait()
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	access, err := groupAccess(r, h.groupStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	lists, err := h.listStore.ListByGroup(access.GroupID)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to list lists", err))
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	h.annotateCounts(r, lists)
	writeJSON(w, http.StatusOK, lists)
}

type listRequest struct {
	Name  *string `json:"name"`
	Title *string `json:"title"`
	Theme *string `json:"theme"`
}

// title returns the requested title; "name" is accepted as an alias.
func (req listRequest) title() *string {
	if req.Title != nil {
		return req.Title
	}
	return req.Name
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if len(title) > maxNameLength {
		return "", apperr.Validation("title is too long")
	}
	return title, nil
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	access, err := groupAccess(r, h.groupStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var raw string
	if t := req.title(); t != nil {
		raw = *t
	}
	title, err := validateTitle(raw)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var theme string
	if req.Theme != nil {
		theme = strings.TrimSpace(*req.Theme)
	}

	l, err := h.listStore.InsertAtTop(access.GroupID, title, theme)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to create list", err))
		return
	}

	h.hub.Broadcast(access.GroupID, websocket.NewMessage(websocket.EntityList, "created", l.ID, nil))
	writeJSON(w, http.StatusCreated, l)
}

// Reorder applies a batch of position changes to the group's lists.
func (h *ListHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	access, err := groupAccess(r, h.groupStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req struct {
		Lists []ordering.Move `json:"lists"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := ordering.ValidateMoves(req.Lists); err != nil {
		writeError(w, r, h.logger, apperr.Validation(err.Error()))
		return
	}

	err = h.listStore.Reorder(access.GroupID, req.Lists)
	var batchErr *store.BatchError
	switch {
	case errors.Is(err, store.ErrListNotInGroup):
		writeError(w, r, h.logger, apperr.Forbidden("one or more lists do not belong to this group"))
		return
	case errors.As(err, &batchErr):
		writeError(w, r, h.logger, apperr.PartialBatch(fmt.Sprintf("failed to reorder lists at list %d", batchErr.ListID), err))
		return
	case err != nil:
		writeError(w, r, h.logger, apperr.Store("failed to reorder lists", err))
		return
	}

	h.hub.Broadcast(access.GroupID, websocket.NewMessage(websocket.EntityList, "reordered", 0, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	total, bought, err := h.itemStore.Counts(l.ID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "count items", "list_id", l.ID, "error", err)
	} else {
		l.TotalItems, l.BoughtItems = total, bought
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	title, theme := l.Title, l.Theme
	if t := req.title(); t != nil {
		if title, err = validateTitle(*t); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	if req.Theme != nil {
		theme = strings.TrimSpace(*req.Theme)
	}

	updated, err := h.listStore.Update(l.ID, title, theme)
	if err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to update list", err))
		return
	}

	h.hub.Broadcast(l.GroupID, websocket.NewMessage(websocket.EntityList, "updated", l.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	l, err := loadList(r, h.groupStore, h.listStore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.listStore.Delete(l.ID); err != nil {
		writeError(w, r, h.logger, apperr.Store("failed to delete list", err))
		return
	}

	h.hub.Broadcast(l.GroupID, websocket.NewMessage(websocket.EntityList, "deleted", l.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
