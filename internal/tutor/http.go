package tutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/routes"
	"github.com/skillhive-app/skillhive-backend/internal/tutor/sse"
)

type Handler struct {
	client      *Client
	transcripts *Transcripts
	log         *zap.Logger
}

func NewHandler(client *Client, transcripts *Transcripts, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{client: client, transcripts: transcripts, log: log}
}

// Routes: the tutor is a member feature, every endpoint is guarded.
func (h *Handler) Routes() routes.Table {
	return routes.Table{
		{Method: http.MethodPost, Path: "/sessions", Auth: true, Handler: h.createSession},
		{Method: http.MethodGet, Path: "/sessions", Auth: true, Handler: h.listSessions},
		{Method: http.MethodGet, Path: "/sessions/:id/messages", Auth: true, Handler: h.history},
		{Method: http.MethodGet, Path: "/sessions/:id/stream", Auth: true, Handler: h.stream},
	}
}

type createSessionReq struct {
	Title string `json:"title"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req)

	s, err := h.transcripts.CreateSession(c.Request.Context(), auth.UserDBID(c), strings.TrimSpace(req.Title))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "session": s})
}

func (h *Handler) listSessions(c *gin.Context) {
	items, err := h.transcripts.ListSessions(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": items})
}

func (h *Handler) history(c *gin.Context) {
	turns, err := h.transcripts.History(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": turns})
}

// stream answers one tutor question over SSE: the upstream completion is
// re-emitted to the browser as delta events while the full answer
// accumulates into the transcript.
func (h *Handler) stream(c *gin.Context) {
	msg := strings.TrimSpace(c.Query("message"))
	if msg == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing message"})
		return
	}

	userID := auth.UserDBID(c)
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	history, err := h.transcripts.Recent(ctx, userID, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	body, err := h.client.Stream(ctx, history, msg)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "tutor: " + err.Error()})
		return
	}
	defer body.Close()

	if err := h.transcripts.Append(ctx, userID, sessionID, Turn{Role: "user", Text: msg}); err != nil {
		h.log.Warn("append user turn failed", zap.Error(err))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	// The keep-alive goroutine and the delta loop share the response
	// writer; the mutex keeps their frames from interleaving.
	var wmu sync.Mutex
	emit := func(frame string) {
		wmu.Lock()
		defer wmu.Unlock()
		fmt.Fprint(c.Writer, frame)
		flusher.Flush()
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit(": keep-alive\n\n")
			}
		}
	}()

	var full strings.Builder
	reader := sse.NewReader(body)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.log.Warn("tutor stream broke", zap.Error(err))
			break
		}

		fragment, ok := DecodeDelta(ev.Data)
		if !ok || fragment == "" {
			continue
		}

		full.WriteString(fragment)
		emit(fmt.Sprintf("event: delta\ndata: %s\n\n", jsonString(fragment)))
	}

	if answer := full.String(); answer != "" {
		if err := h.transcripts.Append(ctx, userID, sessionID, Turn{Role: "assistant", Text: answer}); err != nil {
			h.log.Warn("append assistant turn failed", zap.Error(err))
		}
	}

	emit("event: done\ndata: {\"ok\":true}\n\n")
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
