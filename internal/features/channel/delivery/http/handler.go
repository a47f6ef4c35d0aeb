package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/common/middleware"
	"drops-backend/internal/features/channel/models"
	"drops-backend/internal/features/channel/repository"
)

// Каналы адресуются логином, не числовым id: так же, как их видит чат-бот.
type Handler struct {
	repo repository.ChannelRepository
}

func NewHandler(repo repository.ChannelRepository) *Handler { return &Handler{repo: repo} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/channels", h.list)
	rg.PATCH("/channels/:channel/enabled", h.setEnabled)
	rg.GET("/channels/:channel/settings", h.settings)
	rg.PUT("/channels/:channel/settings", h.upsertSettings)
}

func (h *Handler) list(c *gin.Context) {
	channels, err := h.repo.ListEnabled(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h *Handler) channel(c *gin.Context) (*models.Channel, bool) {
	ch, err := h.repo.GetByLogin(c.Request.Context(), c.Param("channel"))
	if err != nil {
		middleware.Respond(c, err)
		return nil, false
	}
	return ch, true
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) setEnabled(c *gin.Context) {
	ch, ok := h.channel(c)
	if !ok {
		return
	}
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	if err := h.repo.SetEnabled(c.Request.Context(), ch.ID, *req.Enabled); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"login": ch.Login, "enabled": *req.Enabled})
}

func (h *Handler) settings(c *gin.Context) {
	ch, ok := h.channel(c)
	if !ok {
		return
	}
	s, err := h.repo.Settings(c.Request.Context(), ch.ID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type settingsRequest struct {
	MinIntervalMinutes   *int `json:"min_interval_minutes"`
	MaxIntervalMinutes   *int `json:"max_interval_minutes"`
	ActiveTimeoutMinutes *int `json:"active_timeout_minutes"`
	ClaimTimeoutMinutes  *int `json:"claim_timeout_minutes"`
	DropsEnabled         bool `json:"drops_enabled"`
}

func (h *Handler) upsertSettings(c *gin.Context) {
	ch, ok := h.channel(c)
	if !ok {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	if req.MinIntervalMinutes != nil && req.MaxIntervalMinutes != nil && *req.MinIntervalMinutes > *req.MaxIntervalMinutes {
		middleware.Respond(c, apperrors.NewValidationError("min interval must not exceed max interval"))
		return
	}
	s := models.Settings{
		ChannelID:            ch.ID,
		MinIntervalMinutes:   req.MinIntervalMinutes,
		MaxIntervalMinutes:   req.MaxIntervalMinutes,
		ActiveTimeoutMinutes: req.ActiveTimeoutMinutes,
		ClaimTimeoutMinutes:  req.ClaimTimeoutMinutes,
		DropsEnabled:         req.DropsEnabled,
	}
	if err := h.repo.UpsertSettings(c.Request.Context(), s); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
