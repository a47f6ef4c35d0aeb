package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/common/middleware"
	channelrepo "drops-backend/internal/features/channel/repository"
	drawrepo "drops-backend/internal/features/draw/repository"
	givemodels "drops-backend/internal/features/giveaway/models"
	giverepo "drops-backend/internal/features/giveaway/repository"
	"drops-backend/internal/features/giveaway/service"
	triggermodels "drops-backend/internal/features/trigger/models"
	triggerrepo "drops-backend/internal/features/trigger/repository"
)

type Handler struct {
	registry *service.Registry
	triggers triggerrepo.TriggerRepository
	planned  giverepo.GiveawayRepository
	channels channelrepo.ChannelRepository
	draws    drawrepo.DrawRepository
}

func NewHandler(registry *service.Registry, triggers triggerrepo.TriggerRepository, planned giverepo.GiveawayRepository, channels channelrepo.ChannelRepository, draws drawrepo.DrawRepository) *Handler {
	return &Handler{registry: registry, triggers: triggers, planned: planned, channels: channels, draws: draws}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events/chat", h.chatEvent)

	rg.POST("/triggers", h.enqueueTrigger)
	rg.GET("/channels/:channel/triggers", h.pendingTriggers)

	rg.POST("/channels/:channel/planned", h.createPlanned)
	rg.GET("/channels/:channel/planned", h.listPlanned)
	rg.PATCH("/planned/:id/status", h.setPlannedStatus)

	rg.GET("/stats/:nickname", h.stats)
}

type chatEventRequest struct {
	Channel  string `json:"channel" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Message  string `json:"message"`
}

// chatEvent принимает сообщение чата от бота-ридера. Вся логика —
// стаж, клеймы, игра — внутри оркестратора канала.
func (h *Handler) chatEvent(c *gin.Context) {
	var req chatEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	o, ok := h.registry.Get(req.Channel)
	if !ok {
		middleware.Respond(c, apperrors.NewNotFoundError("channel is not managed"))
		return
	}
	if err := o.HandleChat(c.Request.Context(), req.Nickname, req.Message, time.Now()); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type triggerRequest struct {
	Type              string `json:"type" binding:"required"`
	ChannelID         int64  `json:"channel_id" binding:"required"`
	RequestedBy       *int64 `json:"requested_by"`
	RewardID          *int64 `json:"reward_id"`
	WinnersCount      *int   `json:"winners_count"`
	PlannedGiveawayID *int64 `json:"planned_giveaway_id"`
	GuessNumber       *int   `json:"guess_number"`
	GuessMin          *int   `json:"guess_min"`
	GuessMax          *int   `json:"guess_max"`
}

func (h *Handler) enqueueTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	t := triggermodels.Trigger{
		Type:              triggermodels.Type(req.Type),
		ChannelID:         req.ChannelID,
		RequestedBy:       req.RequestedBy,
		RewardID:          req.RewardID,
		WinnersCount:      req.WinnersCount,
		PlannedGiveawayID: req.PlannedGiveawayID,
		GuessNumber:       req.GuessNumber,
		GuessMin:          req.GuessMin,
		GuessMax:          req.GuessMax,
	}
	switch t.Type {
	case triggermodels.TypeRandom, triggermodels.TypeClip:
	case triggermodels.TypePlanned:
		if t.PlannedGiveawayID == nil {
			middleware.Respond(c, apperrors.NewValidationError("planned trigger requires planned_giveaway_id"))
			return
		}
	case triggermodels.TypeGuess:
		if t.RewardID == nil {
			middleware.Respond(c, apperrors.NewValidationError("guess trigger requires reward_id"))
			return
		}
	default:
		middleware.Respond(c, apperrors.NewValidationError("unknown trigger type"))
		return
	}
	id, err := h.triggers.Enqueue(c.Request.Context(), t)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) channelID(c *gin.Context) (int64, bool) {
	ch, err := h.channels.GetByLogin(c.Request.Context(), c.Param("channel"))
	if err != nil {
		middleware.Respond(c, err)
		return 0, false
	}
	return ch.ID, true
}

func (h *Handler) pendingTriggers(c *gin.Context) {
	channelID, ok := h.channelID(c)
	if !ok {
		return
	}
	pending, err := h.triggers.Pending(c.Request.Context(), channelID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": pending})
}

type plannedRequest struct {
	Title        string `json:"title" binding:"required"`
	RewardName   string `json:"reward_name" binding:"required"`
	WinnersCount int    `json:"winners_count"`
	AtStreamEnd  bool   `json:"at_stream_end"`
	CreatedBy    *int64 `json:"created_by"`
}

func (h *Handler) createPlanned(c *gin.Context) {
	channelID, ok := h.channelID(c)
	if !ok {
		return
	}
	var req plannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	if req.WinnersCount <= 0 {
		req.WinnersCount = 1
	}
	status := givemodels.PlannedStatusPlanned
	if req.AtStreamEnd {
		status = givemodels.PlannedStatusEnd
	}
	p, err := h.planned.CreatePlanned(c.Request.Context(), channelID, req.Title, req.RewardName, req.WinnersCount, status, req.CreatedBy)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) listPlanned(c *gin.Context) {
	channelID, ok := h.channelID(c)
	if !ok {
		return
	}
	var statuses []givemodels.PlannedStatus
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, givemodels.PlannedStatus(s))
	}
	items, err := h.planned.ListPlanned(c.Request.Context(), channelID, statuses)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"planned": items})
}

type plannedStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setPlannedStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid planned giveaway id"))
		return
	}
	var req plannedStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	status := givemodels.PlannedStatus(req.Status)
	if status != givemodels.PlannedStatusPlanned && status != givemodels.PlannedStatusEnd {
		middleware.Respond(c, apperrors.NewValidationError("status must be planned or end"))
		return
	}
	if err := h.planned.SetPlannedStatus(c.Request.Context(), id, status); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.draws.Stats(c.Request.Context(), c.Param("nickname"))
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
