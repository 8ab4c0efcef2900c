package emaillogs

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/access"
	"github.com/ticketline/backend/pkg/response"
)

// Handler exposes the event's email log.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET .../emaillogs.
func (h *Handler) List(c *gin.Context) {
	event := access.GetEvent(c)

	logs, err := h.repo.List(c.Request.Context(), event.ID, ListFilter{
		OrderCode: c.Query("order"),
		Status:    c.Query("status"),
	})
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "could not list email logs")
		return
	}
	response.OK(c, logs)
}
