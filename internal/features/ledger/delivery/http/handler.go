package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/common/middleware"
	"drops-backend/internal/features/ledger/service"
)

type Handler struct {
	svc *service.LedgerService
}

func NewHandler(svc *service.LedgerService) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts/:id/balance", h.balance)
	rg.GET("/accounts/:id/entries", h.entries)
	rg.GET("/accounts/:id/items", h.items)
	rg.POST("/accounts/:id/credit", h.credit)
	rg.POST("/accounts/:id/delta", h.delta)

	rg.GET("/conversions", h.pendingConversions)
	rg.POST("/conversions/:id/approve", h.approveConversion)
	rg.POST("/conversions/:id/reject", h.rejectConversion)

	rg.POST("/checks", h.createCheck)
	rg.GET("/checks/:code", h.checkByCode)
	rg.POST("/checks/:code/activate", h.activateCheck)
}

func accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid account id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) balance(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	balance, err := h.svc.Balance(c.Request.Context(), id)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "balance": balance})
}

func (h *Handler) entries(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.svc.Entries(c.Request.Context(), id, limit)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) items(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	items, err := h.svc.AvailableItems(c.Request.Context(), id)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type creditRequest struct {
	Amount     int64  `json:"amount" binding:"required"`
	SourceType string `json:"source_type" binding:"required"`
	SourceID   int64  `json:"source_id" binding:"required"`
}

func (h *Handler) credit(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	credited, err := h.svc.Credit(c.Request.Context(), id, req.Amount, req.SourceType, req.SourceID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credited": credited})
}

func (h *Handler) delta(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	result, err := h.svc.ApplyDelta(c.Request.Context(), id, req.Amount, req.SourceType, req.SourceID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) pendingConversions(c *gin.Context) {
	pending, err := h.svc.PendingConversions(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": pending})
}

type approveRequest struct {
	AdminID int64 `json:"admin_id" binding:"required"`
	Amount  int64 `json:"amount" binding:"required"`
}

func (h *Handler) approveConversion(c *gin.Context) {
	reqID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid request id"))
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	outcome, err := h.svc.ApproveConversion(c.Request.Context(), reqID, req.AdminID, req.Amount)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type rejectRequest struct {
	AdminID int64  `json:"admin_id" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) rejectConversion(c *gin.Context) {
	reqID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid request id"))
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	ok, err := h.svc.RejectConversion(c.Request.Context(), reqID, req.AdminID, req.Reason)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	if !ok {
		middleware.Respond(c, apperrors.NewNotFoundError("pending conversion request not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": true})
}

type createCheckRequest struct {
	Amount         int64  `json:"amount" binding:"required"`
	MaxActivations int    `json:"max_activations" binding:"required"`
	CreatedBy      int64  `json:"created_by"`
	ChannelID      *int64 `json:"channel_id"`
}

func (h *Handler) createCheck(c *gin.Context) {
	var req createCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	code, err := h.svc.CreateCheck(c.Request.Context(), req.Amount, req.MaxActivations, req.CreatedBy, req.ChannelID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (h *Handler) checkByCode(c *gin.Context) {
	check, err := h.svc.CheckByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

type activateRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
}

func (h *Handler) activateCheck(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	result, err := h.svc.ActivateCheck(c.Request.Context(), c.Param("code"), req.AccountID)
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
