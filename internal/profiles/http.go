package profiles

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/routes"
)

var handleRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,31}$`)

type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Routes() routes.Table {
	return routes.Table{
		{Method: http.MethodGet, Path: "/me", Auth: true, Handler: h.getOwn},
		{Method: http.MethodPut, Path: "/me", Auth: true, Handler: h.upsertOwn},
		{Method: http.MethodGet, Path: "/:handle", Auth: false, Handler: h.getByHandle},
	}
}

func (h *Handler) getOwn(c *gin.Context) {
	p, err := h.repo.GetByUserID(c.Request.Context(), auth.UserDBID(c))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "profile not set up yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": p})
}

func (h *Handler) getByHandle(c *gin.Context) {
	p, err := h.repo.GetByHandle(c.Request.Context(), c.Param("handle"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": p})
}

type upsertReq struct {
	Handle    string   `json:"handle"`
	Headline  string   `json:"headline"`
	Bio       string   `json:"bio"`
	Skills    []string `json:"skills"`
	RateCents *int64   `json:"rate_cents"`
	AvatarURL *string  `json:"avatar_url"`
}

func (h *Handler) upsertOwn(c *gin.Context) {
	var req upsertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	req.Handle = strings.ToLower(strings.TrimSpace(req.Handle))
	fields := gin.H{}
	if !handleRe.MatchString(req.Handle) {
		fields["handle"] = "must be 3-32 chars: lowercase letters, digits, hyphens"
	}
	if len(req.Headline) > 120 {
		fields["headline"] = "must be at most 120"
	}
	if len(req.Bio) > 2000 {
		fields["bio"] = "must be at most 2000"
	}
	if len(req.Skills) > 20 {
		fields["skills"] = "must be at most 20"
	}
	if req.RateCents != nil && (*req.RateCents < 0 || *req.RateCents > 1000000) {
		fields["rate_cents"] = "must be between 0 and 1000000"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": fields})
		return
	}

	p, err := h.repo.Upsert(c.Request.Context(), auth.UserDBID(c), UpsertParams{
		Handle:    req.Handle,
		Headline:  strings.TrimSpace(req.Headline),
		Bio:       req.Bio,
		Skills:    req.Skills,
		RateCents: req.RateCents,
		AvatarURL: req.AvatarURL,
	})
	if errors.Is(err, ErrHandleTaken) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "validation failed", "fields": gin.H{"handle": "already taken"}})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": p})
}
