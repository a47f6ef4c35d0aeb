package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/common/middleware"
	"drops-backend/internal/features/reward/models"
	"drops-backend/internal/features/reward/repository"
)

type Handler struct {
	repo repository.RewardRepository
}

func NewHandler(repo repository.RewardRepository) *Handler { return &Handler{repo: repo} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rewards", h.create)
	rg.GET("/rewards", h.list)
	rg.PATCH("/rewards/:id/enabled", h.setEnabled)
}

type createRequest struct {
	ChannelID   *int64 `json:"channel_id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	Quantity    int    `json:"quantity"`
	Enabled     bool   `json:"enabled"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	if req.Weight < 0 {
		middleware.Respond(c, apperrors.NewValidationError("weight must not be negative"))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	reward := models.Reward{
		ChannelID:   req.ChannelID,
		Name:        req.Name,
		Description: req.Description,
		Weight:      req.Weight,
		Quantity:    req.Quantity,
		Enabled:     req.Enabled,
	}
	id, err := h.repo.Create(c.Request.Context(), reward)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	reward.ID = id
	c.JSON(http.StatusCreated, reward)
}

func (h *Handler) list(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.DefaultQuery("channel_id", "0"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid channel_id"))
		return
	}
	rewards, err := h.repo.ListByChannel(c.Request.Context(), channelID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) setEnabled(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid reward id"))
		return
	}
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	ok, err := h.repo.SetEnabled(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	if !ok {
		middleware.Respond(c, apperrors.NewNotFoundError("reward not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *req.Enabled})
}
