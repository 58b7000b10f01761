package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/praxisdev/identity-api/internal/handler"
	"github.com/praxisdev/identity-api/internal/service/audit"
)

const defaultEventLimit = 50

type Handler struct {
	svc *audit.Service
}

func NewHandler(svc *audit.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/security-events")
	{
		events.GET("/user/:id", h.ListUserEvents)
	}
}

func (h *Handler) ListUserEvents(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user ID"))
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
		limit = parsed
	}

	events, err := h.svc.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}
