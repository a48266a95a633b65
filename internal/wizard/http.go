package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/routes"
)

// Commit performs the flow's final insert for a user and returns the
// created entity for the response body.
type Commit func(ctx context.Context, userID string, data map[string]json.RawMessage) (interface{}, error)

// Handler exposes one wizard flow over HTTP. Every route requires auth —
// a wizard session always belongs to a signed-in user.
type Handler struct {
	engine *Engine
	commit Commit
}

func NewHandler(engine *Engine, commit Commit) *Handler {
	return &Handler{engine: engine, commit: commit}
}

// Routes returns the flow's route-table entries under the given prefix.
func (h *Handler) Routes(prefix string) routes.Table {
	return routes.Table{
		{Method: http.MethodPost, Path: prefix, Auth: true, Handler: h.start},
		{Method: http.MethodGet, Path: prefix + "/:wizard_id", Auth: true, Handler: h.get},
		{Method: http.MethodPut, Path: prefix + "/:wizard_id", Auth: true, Handler: h.save},
		{Method: http.MethodPost, Path: prefix + "/:wizard_id/next", Auth: true, Handler: h.next},
		{Method: http.MethodPost, Path: prefix + "/:wizard_id/prev", Auth: true, Handler: h.prev},
		{Method: http.MethodPost, Path: prefix + "/:wizard_id/submit", Auth: true, Handler: h.submit},
	}
}

func (h *Handler) start(c *gin.Context) {
	s, err := h.engine.Start(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "wizard": s, "step_name": s.StepName(h.engine.Definition())})
}

func (h *Handler) get(c *gin.Context) {
	s, err := h.engine.Get(c.Request.Context(), auth.UserDBID(c), c.Param("wizard_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "wizard": s, "step_name": s.StepName(h.engine.Definition())})
}

func (h *Handler) save(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	s, fields, err := h.engine.SavePayload(c.Request.Context(), auth.UserDBID(c), c.Param("wizard_id"), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "wizard": s})
}

func (h *Handler) next(c *gin.Context) {
	s, err := h.engine.Next(c.Request.Context(), auth.UserDBID(c), c.Param("wizard_id"))
	if errors.Is(err, ErrStepIncomplete) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "complete the current step first", "wizard": s})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "wizard": s, "step_name": s.StepName(h.engine.Definition())})
}

func (h *Handler) prev(c *gin.Context) {
	s, err := h.engine.Prev(c.Request.Context(), auth.UserDBID(c), c.Param("wizard_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "wizard": s, "step_name": s.StepName(h.engine.Definition())})
}

func (h *Handler) submit(c *gin.Context) {
	userID := auth.UserDBID(c)
	var created interface{}

	err := h.engine.Submit(c.Request.Context(), userID, c.Param("wizard_id"), func(ctx context.Context, data map[string]json.RawMessage) error {
		var cerr error
		created, cerr = h.commit(ctx, userID, data)
		return cerr
	})
	if errors.Is(err, ErrNotFinalStep) || errors.Is(err, ErrStepIncomplete) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "result": created})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "wizard session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
}
