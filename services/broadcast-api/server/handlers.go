package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellergram/broadcast/docs"
	"github.com/sellergram/broadcast/internal/access"
	"github.com/sellergram/broadcast/internal/campaign"
	"github.com/sellergram/broadcast/internal/consent"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/auth"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/metrics"
)

type campaignsAPI interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	InsertCampaign(ctx context.Context, tx *sql.Tx, sellerID int64, title, body, category string, productRef *string) (int64, error)
	ReplaceAudience(ctx context.Context, tx *sql.Tx, campaignID int64, contacts []string) error
	GetSellerCampaign(ctx context.Context, id, sellerID int64) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, sellerID int64, limit, offset int) ([]campaign.Campaign, error)
	UpdateDraft(ctx context.Context, id, sellerID int64, title, body, category string, productRef *string) error
	Schedule(ctx context.Context, id, sellerID int64, at, now time.Time) error
	Cancel(ctx context.Context, id, sellerID int64) error
	ListSendErrors(ctx context.Context, campaignID int64, limit, offset int) ([]campaign.SendError, error)
}

type contactsAPI interface {
	UpsertContact(ctx context.Context, sellerID int64, phone, name, source string, buyerID *int64) (consent.Record, error)
	RedeemOptOut(ctx context.Context, token string) (bool, error)
	RedeemOptIn(ctx context.Context, token string) (bool, error)
	ListContacts(ctx context.Context, sellerID int64, limit, offset int) ([]consent.Record, error)
}

type settingsAPI interface {
	GetSetting(ctx context.Context, key string) (store.Setting, error)
	SetValue(ctx context.Context, key, value, valueType, description string, updatedBy int64) error
}

type sellersAPI interface {
	GetSeller(ctx context.Context, id int64) (store.Seller, error)
	SetSellerBroadcastsEnabled(ctx context.Context, id int64, enabled bool) error
}

type publisherAPI interface {
	PublishJSON(ctx context.Context, body []byte) error
}

type gateAPI interface {
	Authorize(ctx context.Context, seller store.Seller) error
}

type trialAPI interface {
	CheckAndSuspendIfExpired(ctx context.Context, seller *store.Seller) (bool, error)
}

type limiterAPI interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Handlers struct {
	Campaigns campaignsAPI
	Contacts  contactsAPI
	Settings  settingsAPI
	Sellers   sellersAPI
	Pub       publisherAPI
	Gate      gateAPI
	Trial     trialAPI
	Auth      *auth.Tokens
	Limiter   limiterAPI
}

func NewHandlers(st *store.Store, pub publisherAPI, gate gateAPI, trial trialAPI, tokens *auth.Tokens, limiter limiterAPI) *Handlers {
	return &Handlers{
		Campaigns: st,
		Contacts:  st,
		Settings:  st,
		Sellers:   st,
		Pub:       pub,
		Gate:      gate,
		Trial:     trial,
		Auth:      tokens,
		Limiter:   limiter,
	}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) Docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.BroadcastSwaggerHTML)
}

func (h *Handlers) OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.BroadcastOpenAPI)
}

func campaignID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeTransitionErr maps store sentinels onto HTTP statuses. Transition
// violations are rejected explicitly, never coerced into another state.
func writeTransitionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
	case errors.Is(err, store.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled time must be in the future"})
	case errors.Is(err, store.ErrAlreadySending):
		c.JSON(http.StatusConflict, gin.H{"error": "dispatch already in progress"})
	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not allowed in current status"})
	default:
		logx.L().Errorw("campaign_store_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var id int64
	err := h.Campaigns.WithTx(ctx, func(tx *sql.Tx) error {
		var e error
		id, e = h.Campaigns.InsertCampaign(ctx, tx, seller.ID, req.Title, req.Body, req.Category, req.ProductRef)
		if e != nil {
			return e
		}
		if len(req.Audience) > 0 {
			return h.Campaigns.ReplaceAudience(ctx, tx, id, req.Audience)
		}
		return nil
	})
	if err != nil {
		logx.L().Errorw("create_campaign_error", "seller_id", seller.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
		return
	}

	c.JSON(http.StatusOK, campaign.CreateCampaignResp{ID: id})
}

func (h *Handlers) ListCampaigns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Campaigns.ListCampaigns(ctx, seller.ID, limit, offset)
	if err != nil {
		logx.L().Errorw("list_campaigns_error", "seller_id", seller.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}
	if out == nil {
		out = []campaign.Campaign{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Campaigns.GetSellerCampaign(ctx, id, seller.ID)
	if err != nil {
		writeTransitionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h *Handlers) UpdateCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req campaign.UpdateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Campaigns.UpdateDraft(ctx, id, seller.ID, req.Title, req.Body, req.Category, req.ProductRef); err != nil {
		writeTransitionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handlers) ScheduleCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req campaign.ScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// The gate runs when a campaign leaves draft, and again in the
	// worker right before sending; flags may change in between.
	if err := h.authorizeBroadcast(c, seller); err != nil {
		return
	}

	if err := h.Campaigns.Schedule(ctx, id, seller.ID, req.ScheduledAt, time.Now()); err != nil {
		writeTransitionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "scheduled"})
}

func (h *Handlers) SendCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Campaigns.GetSellerCampaign(ctx, id, seller.ID)
	if err != nil {
		writeTransitionErr(c, err)
		return
	}
	switch camp.Status {
	case campaign.StatusDraft, campaign.StatusScheduled:
	case campaign.StatusSending:
		writeTransitionErr(c, store.ErrAlreadySending)
		return
	default:
		writeTransitionErr(c, store.ErrInvalidTransition)
		return
	}

	if err := h.authorizeBroadcast(c, seller); err != nil {
		return
	}

	payload, err := json.Marshal(campaign.DispatchJob{CampaignID: camp.ID, SellerID: seller.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish error"})
		return
	}
	if err := h.Pub.PublishJSON(ctx, payload); err != nil {
		logx.L().Errorw("publish_dispatch_job_error", "campaign_id", camp.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "queue unavailable"})
		return
	}
	metrics.PublishedJobsTotal.Inc()

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) CancelCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Campaigns.Cancel(ctx, id, seller.ID); err != nil {
		writeTransitionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handlers) ListCampaignErrors(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	seller := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Campaigns.GetSellerCampaign(ctx, id, seller.ID); err != nil {
		writeTransitionErr(c, err)
		return
	}
	out, err := h.Campaigns.ListSendErrors(ctx, id, limit, offset)
	if err != nil {
		logx.L().Errorw("list_send_errors_error", "campaign_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}
	if out == nil {
		out = []campaign.SendError{}
	}
	c.JSON(http.StatusOK, out)
}

// authorizeBroadcast surfaces the exact denial layer to the caller; a
// seller must know whether the platform, their flag or their trial
// blocked them.
func (h *Handlers) authorizeBroadcast(c *gin.Context, seller store.Seller) error {
	err := h.Gate.Authorize(c.Request.Context(), seller)
	if err == nil {
		return nil
	}
	var denial *access.Denial
	if errors.As(err, &denial) {
		metrics.AccessDeniedTotal.WithLabelValues(denial.Reason).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "broadcast access denied", "reason": denial.Reason})
		return err
	}
	logx.L().Errorw("access_gate_error", "seller_id", seller.ID, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	return err
}
