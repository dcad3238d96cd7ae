package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pantrysnap/server/audit"
	"github.com/pantrysnap/server/events"
	"github.com/pantrysnap/server/inventory"
	mw "github.com/pantrysnap/server/middleware"
	"github.com/pantrysnap/server/model"
	"github.com/pantrysnap/server/vision"
	"go.uber.org/zap"
)

// InventoryHandler handles inventory REST endpoints.
type InventoryHandler struct {
	svc      *inventory.Service
	activity *audit.Service
	events   *events.Publisher
	logger   *zap.Logger
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(svc *inventory.Service, activity *audit.Service, ev *events.Publisher, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, activity: activity, events: ev, logger: logger}
}

// itemView is the wire form of an item: the normalized name plus the
// derived display form.
type itemView struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
}

func toViews(items []model.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, itemView{
			Name:        it.Name,
			DisplayName: inventory.DisplayName(it.Name),
			Quantity:    it.Quantity,
		})
	}
	return views
}

// List handles GET /api/inventory. The optional q parameter filters
// the view by case-insensitive substring match.
func (h *InventoryHandler) List(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	items, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		writeInventoryError(c, err)
		return
	}
	if q := c.Query("q"); q != "" {
		items = inventory.Search(items, q)
	}
	c.JSON(http.StatusOK, gin.H{"items": toViews(items)})
}

type addItemRequest struct {
	Name string `json:"name"`
}

// AddItem handles POST /api/inventory/items: one increment, creating
// the item at quantity 1 when absent. The response carries the item
// and the wholesale-reloaded view.
func (h *InventoryHandler) AddItem(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	item, err := h.svc.Increment(c.Request.Context(), ownerID, req.Name)
	if err != nil {
		writeInventoryError(c, err)
		return
	}

	h.record(c, ownerID, "increment", item.Name, item.Quantity, nil)

	items, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		writeInventoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":  itemView{Name: item.Name, DisplayName: inventory.DisplayName(item.Name), Quantity: item.Quantity},
		"items": toViews(items),
	})
}

// RemoveItem handles DELETE /api/inventory/items/:name: one decrement.
// A missing item is an idempotent no-op so double-taps stay harmless.
func (h *InventoryHandler) RemoveItem(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	name := c.Param("name")

	item, removed, err := h.svc.Decrement(c.Request.Context(), ownerID, name)
	if err != nil {
		writeInventoryError(c, err)
		return
	}

	missing := item == nil && !removed
	if !missing {
		qty := 0
		if item != nil {
			qty = item.Quantity
		}
		h.record(c, ownerID, "decrement", inventory.Normalize(name), qty, nil)
	}

	items, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		writeInventoryError(c, err)
		return
	}
	resp := gin.H{
		"removed": removed,
		"missing": missing,
		"items":   toViews(items),
	}
	if item != nil {
		resp["item"] = itemView{Name: item.Name, DisplayName: inventory.DisplayName(item.Name), Quantity: item.Quantity}
	}
	c.JSON(http.StatusOK, resp)
}

// Activity handles GET /api/inventory/activity.
func (h *InventoryHandler) Activity(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.activity.Recent(c.Request.Context(), ownerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

// record writes the activity entry and publishes the change event.
// Both are best-effort side channels of an already-committed mutation.
func (h *InventoryHandler) record(c *gin.Context, ownerID int64, action, name string, quantity int, detail interface{}) {
	h.activity.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		OwnerID:  ownerID,
		Action:   action,
		ItemName: name,
		Quantity: quantity,
		Detail:   detail,
		IP:       c.ClientIP(),
	})
	h.events.ItemChanged(c.Request.Context(), ownerID, events.ItemEvent{
		Action:   action,
		Name:     name,
		Quantity: quantity,
	})
}

// writeInventoryError maps inventory and vision sentinels to HTTP
// status codes.
func writeInventoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrEmptyName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "item name is empty"})
	case errors.Is(err, inventory.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found or expired"})
	case errors.Is(err, vision.ErrDetectionUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "label detection unavailable"})
	case errors.Is(err, inventory.ErrStoreUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "inventory store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
