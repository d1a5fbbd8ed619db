package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sellergram/broadcast/pkg/auth"
	"github.com/sellergram/broadcast/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", h.Docs)
	r.GET("/docs/broadcast-api/openapi.yaml", h.OpenAPI)

	// Public consent redemption, throttled per client IP.
	public := r.Group("/", RateLimit(h.Limiter))
	public.GET("/unsubscribe", h.Unsubscribe)
	public.GET("/resubscribe", h.Resubscribe)

	sellers := r.Group("/", h.AuthRequired(auth.RoleSeller))
	sellers.POST("/campaigns", h.CreateCampaign)
	sellers.GET("/campaigns", h.ListCampaigns)
	sellers.GET("/campaigns/:id", h.GetCampaign)
	sellers.PUT("/campaigns/:id", h.UpdateCampaign)
	sellers.POST("/campaigns/:id/schedule", h.ScheduleCampaign)
	sellers.POST("/campaigns/:id/send", h.SendCampaign)
	sellers.POST("/campaigns/:id/cancel", h.CancelCampaign)
	sellers.GET("/campaigns/:id/errors", h.ListCampaignErrors)
	sellers.POST("/contacts", h.CreateContact)
	sellers.GET("/contacts", h.ListContacts)

	admin := r.Group("/admin", h.AuthRequired(auth.RoleAdmin))
	admin.GET("/settings/:key", h.GetSetting)
	admin.PUT("/settings/:key", h.PutSetting)
	admin.PUT("/sellers/:id/broadcasts-enabled", h.PutSellerBroadcastsEnabled)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}
