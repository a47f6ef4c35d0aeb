package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/common/middleware"
	"drops-backend/internal/features/identity/repository"
)

type Handler struct {
	repo repository.IdentityRepository
}

func NewHandler(repo repository.IdentityRepository) *Handler { return &Handler{repo: repo} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/identity/:id/verification", h.createVerification)
	rg.GET("/identity", h.list)
}

// createVerification выдаёт код, который зритель пишет в чат как
// "!link <код>". Повторный запрос перевыпускает код.
func (h *Handler) createVerification(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.Respond(c, apperrors.NewValidationError("invalid account id"))
		return
	}
	code := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	if err := h.repo.CreateVerification(c.Request.Context(), accountID, code); err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account_id": accountID, "code": code})
}

func (h *Handler) list(c *gin.Context) {
	links, err := h.repo.List(c.Request.Context())
	if err != nil {
		middleware.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}
