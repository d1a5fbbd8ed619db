package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/metrics"
)

const ctxSellerKey = "seller"

func Observability() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.Request.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", rid)

		c.Set("request_id", rid)
		c.Next()

		lat := time.Since(start).Seconds()
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, path).Observe(lat)

		logx.L().Infow("http_access",
			"rid", rid,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", lat,
			"client_ip", c.ClientIP(),
		)
	}
}

// AuthRequired validates the bearer token, loads the seller record and,
// for trial-bound sellers, lazily applies suspension. The suspension
// check runs on every authenticated request; there is no background
// sweep, so a lapsed trial is caught on the seller's next call.
func (h *Handlers) AuthRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.Auth.Parse(extractBearer(c))
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(403, gin.H{"error": "forbidden"})
			return
		}

		seller, err := h.Sellers.GetSeller(c.Request.Context(), claims.SellerID)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}

		if flipped, err := h.Trial.CheckAndSuspendIfExpired(c.Request.Context(), &seller); err != nil {
			logx.L().Errorw("trial_check_error", "seller_id", seller.ID, "error", err)
		} else if flipped {
			logx.L().Infow("seller_suspended", "seller_id", seller.ID)
		}

		c.Set(ctxSellerKey, seller)
		c.Next()
	}
}

func sellerFrom(c *gin.Context) store.Seller {
	v, _ := c.Get(ctxSellerKey)
	s, _ := v.(store.Seller)
	return s
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(value) <= len(prefix) || value[:len(prefix)] != prefix {
		return ""
	}
	return value[len(prefix):]
}

// RateLimit throttles unauthenticated endpoints per client IP. The
// limiter fails open; an unreachable Redis is logged, not surfaced.
func RateLimit(limiter limiterAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logx.L().Warnw("ratelimit_error", "client_ip", c.ClientIP(), "error", err)
		}
		if !ok {
			c.AbortWithStatusJSON(429, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
