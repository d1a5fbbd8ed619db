package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
)

func (h *Handlers) GetSetting(c *gin.Context) {
	key := c.Param("key")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Settings.GetSetting(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
		return
	case err != nil:
		logx.L().Errorw("get_setting_error", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, s)
}

type putSettingReq struct {
	Value       string `json:"value" binding:"required"`
	ValueType   string `json:"value_type" binding:"required,oneof=bool int string"`
	Description string `json:"description"`
}

func (h *Handlers) PutSetting(c *gin.Context) {
	key := c.Param("key")
	var req putSettingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.ValueType {
	case store.ValueBool:
		if _, err := strconv.ParseBool(req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is not a bool"})
			return
		}
	case store.ValueInt:
		if _, err := strconv.Atoi(req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is not an int"})
			return
		}
	}
	admin := sellerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Settings.SetValue(ctx, key, req.Value, req.ValueType, req.Description, admin.ID); err != nil {
		logx.L().Errorw("set_setting_error", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	logx.L().Infow("setting_updated", "key", key, "value", req.Value, "updated_by", admin.ID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type putSellerFlagReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handlers) PutSellerBroadcastsEnabled(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req putSellerFlagReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Sellers.SetSellerBroadcastsEnabled(ctx, id, *req.Enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "seller not found"})
			return
		}
		logx.L().Errorw("set_seller_flag_error", "seller_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	logx.L().Infow("seller_broadcasts_flag_updated", "seller_id", id, "enabled", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
