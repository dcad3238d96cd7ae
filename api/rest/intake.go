package rest

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pantrysnap/server/audit"
	"github.com/pantrysnap/server/events"
	"github.com/pantrysnap/server/inventory"
	mw "github.com/pantrysnap/server/middleware"
	"go.uber.org/zap"
)

// Uploads beyond this size are rejected before labeling.
const maxImageBytes = 8 << 20

// IntakeHandler handles the capture-to-batch REST endpoints.
type IntakeHandler struct {
	intake   *inventory.Intake
	svc      *inventory.Service
	activity *audit.Service
	events   *events.Publisher
	logger   *zap.Logger
}

// NewIntakeHandler creates a new IntakeHandler.
func NewIntakeHandler(intake *inventory.Intake, svc *inventory.Service, activity *audit.Service, ev *events.Publisher, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{intake: intake, svc: svc, activity: activity, events: ev, logger: logger}
}

// Detect handles POST /api/vision/detect. The request is multipart
// form data with one "image" field; the response lists the candidate
// names pending confirmation and the batch ID to confirm or discard
// them with. An image with no detectable labels yields an empty list
// and no batch.
func (h *IntakeHandler) Detect(c *gin.Context) {
	ownerID := mw.GetUserID(c)

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image field"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	if len(image) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty image"})
		return
	}
	if len(image) > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	batchID, candidates, err := h.intake.Detect(c.Request.Context(), ownerID, image)
	if err != nil {
		h.logger.Warn("detection failed",
			zap.Int64("owner_id", ownerID),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		writeInventoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "items": candidates})
}

// ConfirmBatch handles POST /api/inventory/batches/:id/confirm. The
// batch is applied as sequential increments; a failure partway leaves
// the applied prefix durable and reports per-item outcomes.
func (h *IntakeHandler) ConfirmBatch(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	batchID := c.Param("id")

	result, err := h.intake.Confirm(c.Request.Context(), ownerID, batchID)
	if err != nil {
		writeInventoryError(c, err)
		return
	}

	h.activity.Log(audit.Entry{
		TraceID: mw.GetTraceID(c),
		OwnerID: ownerID,
		Action:  "batch_confirm",
		Detail:  result,
		IP:      c.ClientIP(),
	})
	for _, out := range result.Outcomes {
		if out.Status != inventory.OutcomeApplied {
			continue
		}
		h.events.ItemChanged(c.Request.Context(), ownerID, events.ItemEvent{
			Action:   "increment",
			Name:     out.Name,
			Quantity: out.Quantity,
		})
	}

	items, err := h.svc.List(c.Request.Context(), ownerID)
	if err != nil {
		writeInventoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "items": toViews(items)})
}

// DiscardBatch handles DELETE /api/inventory/batches/:id. No store
// interaction; discarding an unknown batch is a no-op.
func (h *IntakeHandler) DiscardBatch(c *gin.Context) {
	ownerID := mw.GetUserID(c)
	if err := h.intake.Discard(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"discarded": true})
}
