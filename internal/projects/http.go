package projects

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/fetchcache"
	"github.com/skillhive-app/skillhive-backend/internal/routes"
	"github.com/skillhive-app/skillhive-backend/internal/wizard"
)

const (
	browseCacheKey = "projects:published"
	browseCacheTTL = 60 * time.Second
)

type Handler struct {
	repo  *Repo
	cache *fetchcache.Cache
	wiz   *wizard.Handler
}

func NewHandler(repo *Repo, cache *fetchcache.Cache, rdb *redis.Client) *Handler {
	h := &Handler{repo: repo, cache: cache}
	h.wiz = NewSubmissionWizard(rdb, repo, h.invalidateBrowse)
	return h
}

// Routes is the projects slice of the route table. Browsing published
// projects is public; everything touching the caller's own rows is guarded.
func (h *Handler) Routes() routes.Table {
	t := routes.Table{
		{Method: http.MethodGet, Path: "", Auth: false, Handler: h.browse},
		{Method: http.MethodGet, Path: "/mine", Auth: true, Handler: h.listOwn},
		{Method: http.MethodGet, Path: "/:public_id", Auth: false, Handler: h.get},
		{Method: http.MethodPatch, Path: "/:public_id", Auth: true, Handler: h.update},
		{Method: http.MethodDelete, Path: "/:public_id", Auth: true, Handler: h.delete},
	}
	return append(t, h.wiz.Routes("/wizard")...)
}

func (h *Handler) invalidateBrowse() {
	h.cache.Invalidate(context.Background(), browseCacheKey)
}

func browseLoader(repo *Repo) fetchcache.Loader {
	return func(ctx context.Context) ([]byte, error) {
		items, err := repo.ListPublished(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	}
}

// RefreshBrowseCache rebuilds the published-projects cache entry. The worker
// calls it nightly so the first morning read never pays the cold-start query.
func RefreshBrowseCache(ctx context.Context, cache *fetchcache.Cache, repo *Repo) error {
	return cache.Refresh(ctx, browseCacheKey, browseCacheTTL, browseLoader(repo))
}

func (h *Handler) browse(c *gin.Context) {
	b, err := h.cache.GetOrLoad(c.Request.Context(), browseCacheKey, browseCacheTTL, browseLoader(h.repo))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": json.RawMessage(b)})
}

func (h *Handler) listOwn(c *gin.Context) {
	items, err := h.repo.ListOwn(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type updateReq struct {
	Title       *string  `json:"title"`
	Summary     *string  `json:"summary"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	RepoURL     *string  `json:"repo_url"`
	DemoURL     *string  `json:"demo_url"`
	Status      *string  `json:"status"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": gin.H{"title": "this field is required"}})
		return
	}
	if req.Status != nil && *req.Status != StatusDraft && *req.Status != StatusPublished {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": gin.H{"status": "must be one of: draft published"}})
		return
	}

	p, err := h.repo.Update(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), UpdateParams{
		Title:       req.Title,
		Summary:     req.Summary,
		Description: req.Description,
		Tags:        req.Tags,
		RepoURL:     req.RepoURL,
		DemoURL:     req.DemoURL,
		Status:      req.Status,
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.invalidateBrowse()
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) delete(c *gin.Context) {
	ok, err := h.repo.SoftDelete(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}

	h.invalidateBrowse()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
