package listings

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
	s3store "github.com/skillhive-app/skillhive-backend/internal/storage/s3"
	"github.com/skillhive-app/skillhive-backend/internal/wizard"
)

const (
	browseCacheKey = "listings:active"
	browseCacheTTL = 60 * time.Second

	maxImageBytes = 5 << 20
)

type Handler struct {
	repo     *Repo
	cache    *fetchcache.Cache
	uploader *s3store.Uploader
	wiz      *wizard.Handler
}

// NewHandler wires the marketplace endpoints. uploader may be nil when no
// bucket is configured; image upload then answers 503.
func NewHandler(repo *Repo, cache *fetchcache.Cache, uploader *s3store.Uploader, rdb *redis.Client) *Handler {
	h := &Handler{repo: repo, cache: cache, uploader: uploader}
	h.wiz = NewCreationWizard(rdb, repo, h.invalidateBrowse)
	return h
}

func (h *Handler) Routes() routes.Table {
	t := routes.Table{
		{Method: http.MethodGet, Path: "", Auth: false, Handler: h.browse},
		{Method: http.MethodGet, Path: "/mine", Auth: true, Handler: h.listOwn},
		{Method: http.MethodGet, Path: "/:public_id", Auth: false, Handler: h.get},
		{Method: http.MethodPatch, Path: "/:public_id", Auth: true, Handler: h.update},
		{Method: http.MethodDelete, Path: "/:public_id", Auth: true, Handler: h.delete},
		{Method: http.MethodPost, Path: "/images", Auth: true, Handler: h.uploadImage},
	}
	return append(t, h.wiz.Routes("/wizard")...)
}

func (h *Handler) invalidateBrowse() {
	h.cache.Invalidate(context.Background(), browseCacheKey)
}

func browseLoader(repo *Repo) fetchcache.Loader {
	return func(ctx context.Context) ([]byte, error) {
		items, err := repo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	}
}

// RefreshBrowseCache rebuilds the active-listings cache entry for the
// worker's nightly warm.
func RefreshBrowseCache(ctx context.Context, cache *fetchcache.Cache, repo *Repo) error {
	return cache.Refresh(ctx, browseCacheKey, browseCacheTTL, browseLoader(repo))
}

// browse serves the marketplace feed. The full active set is cached; the
// optional ?q= substring filter runs on the fetched slice, so the same
// query always yields the same subset of the same snapshot.
func (h *Handler) browse(c *gin.Context) {
	b, err := h.cache.GetOrLoad(c.Request.Context(), browseCacheKey, browseCacheTTL, browseLoader(h.repo))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "listings": json.RawMessage(b)})
		return
	}

	var items []Listing
	if err := json.Unmarshal(b, &items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "listings": Filter(items, q)})
}

func (h *Handler) listOwn(c *gin.Context) {
	items, err := h.repo.ListOwn(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "listings": items})
}

func (h *Handler) get(c *gin.Context) {
	l, err := h.repo.Get(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "listing not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "listing": l})
}

type updateReq struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Category     *string `json:"category"`
	PriceCents   *int64  `json:"price_cents"`
	DeliveryDays *int    `json:"delivery_days"`
	ImageURL     *string `json:"image_url"`
	Status       *string `json:"status"`
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
	if req.Status != nil {
		switch *req.Status {
		case StatusActive, StatusPaused:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": gin.H{"status": "must be one of: active paused"}})
			return
		}
	}
	if req.PriceCents != nil && (*req.PriceCents < 100 || *req.PriceCents > 1000000) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": gin.H{"price_cents": "must be between 100 and 1000000"}})
		return
	}

	l, err := h.repo.Update(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		DeliveryDays: req.DeliveryDays,
		ImageURL:     req.ImageURL,
		Status:       req.Status,
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "listing not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.invalidateBrowse()
	c.JSON(http.StatusOK, gin.H{"ok": true, "listing": l})
}

func (h *Handler) delete(c *gin.Context) {
	ok, err := h.repo.SoftDelete(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "listing not found"})
		return
	}

	h.invalidateBrowse()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// uploadImage accepts a multipart "image" part, puts it in the bucket and
// returns the URL to reference from the wizard's media step.
func (h *Handler) uploadImage(c *gin.Context) {
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "image storage is not configured"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing image file"})
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "image too large (max 5MB)"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	switch contentType {
	case "image/png", "image/jpeg", "image/webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unsupported image type"})
		return
	}

	key := s3store.NewObjectKey("listings")
	url, err := h.uploader.Put(c.Request.Context(), key, contentType, file)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upload failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "image_url": url})
}
