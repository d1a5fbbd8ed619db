package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellergram/broadcast/internal/consent"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
)

// Unsubscribe redeems a single-use opt-out token. Redeeming the same
// token twice is not an error; the second call reports the state the
// first one produced.
func (h *Handlers) Unsubscribe(c *gin.Context) {
	h.redeem(c, "unsubscribe", h.Contacts.RedeemOptOut, "already_unsubscribed")
}

func (h *Handlers) Resubscribe(c *gin.Context) {
	h.redeem(c, "resubscribe", h.Contacts.RedeemOptIn, "already_subscribed")
}

func (h *Handlers) redeem(c *gin.Context, op string, fn func(ctx context.Context, token string) (bool, error), alreadyStatus string) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	already, err := fn(ctx, token)
	switch {
	case errors.Is(err, store.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	case err != nil:
		logx.L().Errorw("redeem_token_error", "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	case already:
		c.JSON(http.StatusOK, gin.H{"status": alreadyStatus})
		return
	}

	logx.L().Infow("consent_token_redeemed", "op", op)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type createContactReq struct {
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name"`
	BuyerID *int64 `json:"buyer_id"`
}

func (h *Handlers) CreateContact(c *gin.Context) {
	var req createContactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Contacts.UpsertContact(ctx, seller.ID, req.Phone, req.Name, consent.SourceManual, req.BuyerID)
	if err != nil {
		logx.L().Errorw("upsert_contact_error", "seller_id", seller.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handlers) ListContacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Contacts.ListContacts(ctx, seller.ID, limit, offset)
	if err != nil {
		logx.L().Errorw("list_contacts_error", "seller_id", seller.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}
	if out == nil {
		out = []consent.Record{}
	}
	c.JSON(http.StatusOK, out)
}
