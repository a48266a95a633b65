package proposals

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/notify"
	"github.com/skillhive-app/skillhive-backend/internal/routes"
	"github.com/skillhive-app/skillhive-backend/internal/users"
)

type Handler struct {
	repo     *Repo
	users    *users.Repo
	notifier *notify.Notifier
}

func NewHandler(repo *Repo, usersRepo *users.Repo, notifier *notify.Notifier) *Handler {
	return &Handler{repo: repo, users: usersRepo, notifier: notifier}
}

// Routes: every proposal endpoint involves one of the two parties, so the
// whole table is guarded.
func (h *Handler) Routes() routes.Table {
	return routes.Table{
		{Method: http.MethodPost, Path: "", Auth: true, Handler: h.create},
		{Method: http.MethodGet, Path: "/sent", Auth: true, Handler: h.listSent},
		{Method: http.MethodGet, Path: "/received", Auth: true, Handler: h.listReceived},
		{Method: http.MethodGet, Path: "/:id", Auth: true, Handler: h.get},
		{Method: http.MethodPost, Path: "/:id/accept", Auth: true, Handler: h.accept},
		{Method: http.MethodPost, Path: "/:id/decline", Auth: true, Handler: h.decline},
		{Method: http.MethodPost, Path: "/:id/withdraw", Auth: true, Handler: h.withdraw},
	}
}

type createReq struct {
	ListingPublicID string `json:"listing_public_id"`
	Message         string `json:"message"`
	OfferCents      int64  `json:"offer_cents"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	fields := gin.H{}
	if strings.TrimSpace(req.ListingPublicID) == "" {
		fields["listing_public_id"] = "this field is required"
	}
	if strings.TrimSpace(req.Message) == "" {
		fields["message"] = "this field is required"
	}
	if req.OfferCents < 100 {
		fields["offer_cents"] = "must be at least 100"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation failed", "fields": fields})
		return
	}

	buyerID := auth.UserDBID(c)
	p, err := h.repo.Create(c.Request.Context(), buyerID, req.ListingPublicID, strings.TrimSpace(req.Message), req.OfferCents)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "listing not found"})
		return
	}
	if errors.Is(err, ErrOwnListing) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "cannot propose on your own listing"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	h.notifyParty(c, p.SellerID, "proposal_received", p)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "proposal": p})
}

func (h *Handler) listSent(c *gin.Context) {
	items, err := h.repo.ListSent(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "proposals": items})
}

func (h *Handler) listReceived(c *gin.Context) {
	items, err := h.repo.ListReceived(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "proposals": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "proposal not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "proposal": p})
}

func (h *Handler) accept(c *gin.Context) {
	h.transition(c, StatusAccepted, ActorSeller)
}

func (h *Handler) decline(c *gin.Context) {
	h.transition(c, StatusDeclined, ActorSeller)
}

func (h *Handler) withdraw(c *gin.Context) {
	h.transition(c, StatusWithdrawn, ActorBuyer)
}

func (h *Handler) transition(c *gin.Context, to string, actor Actor) {
	callerID := auth.UserDBID(c)
	p, err := h.repo.Transition(c.Request.Context(), callerID, c.Param("id"), to, actor)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "proposal not found"})
		return
	}
	if errors.Is(err, ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	// The counterpart gets the email: seller actions notify the buyer and
	// vice versa.
	recipient := p.BuyerID
	if actor == ActorBuyer {
		recipient = p.SellerID
	}
	h.notifyParty(c, recipient, "proposal_"+to, p)

	c.JSON(http.StatusOK, gin.H{"ok": true, "proposal": p})
}

func (h *Handler) notifyParty(c *gin.Context, userID, kind string, p *Proposal) {
	if h.notifier == nil {
		return
	}

	ctx := c.Request.Context()
	email, err := h.users.EmailByID(ctx, userID)
	if err != nil || email == "" {
		return
	}

	h.notifier.Enqueue(ctx, kind, email, map[string]interface{}{
		"proposal_id":   p.ID,
		"listing_title": p.ListingTitle,
		"offer_cents":   p.OfferCents,
		"status":        p.Status,
	})
}
