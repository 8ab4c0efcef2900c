package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/access"
	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/pkg/lock"
	"github.com/ticketline/backend/pkg/response"
)

// Handler exposes the order and order position resources.
type Handler struct {
	repo        *Repository
	creator     *CreateService
	transitions *TransitionService
	logger      *zap.Logger
}

// NewHandler creates an order handler.
func NewHandler(repo *Repository, creator *CreateService, transitions *TransitionService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, creator: creator, transitions: transitions, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, action string) {
	var verr *ValidationError
	var rerr *RequestError
	var terr ErrInvalidTransition
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(c, verr.Fields)
	case errors.As(err, &rerr):
		response.BadRequest(c, rerr.Message)
	case errors.As(err, &terr):
		response.BadRequest(c, terr.Message)
	case errors.Is(err, lock.ErrLockHeld):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "order not found")
	default:
		h.logger.Error(action+" failed", zap.Error(err))
		response.Internal(c, "could not "+action)
	}
}

// List handles GET .../orders.
func (h *Handler) List(c *gin.Context) {
	event := access.GetEvent(c)

	f := ListFilter{
		Code:   c.Query("code"),
		Status: c.Query("status"),
		Email:  c.Query("email"),
		Locale: c.Query("locale"),
	}
	if v := c.Query("modified_since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'modified_since'")
			return
		}
		f.ModifiedSince = &t
	}

	orders, err := h.repo.List(c.Request.Context(), event, f)
	if err != nil {
		h.fail(c, err, "list orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	response.OK(c, orders)
}

// Retrieve handles GET .../orders/:code.
func (h *Handler) Retrieve(c *gin.Context) {
	event := access.GetEvent(c)
	order, err := h.repo.GetByCode(c.Request.Context(), event, c.Param("code"))
	if err != nil {
		h.fail(c, err, "load order")
		return
	}
	response.OK(c, order)
}

// Create handles POST .../orders.
func (h *Handler) Create(c *gin.Context) {
	event := access.GetEvent(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	order, err := h.creator.Create(c.Request.Context(), event, &req)
	if err != nil {
		h.fail(c, err, "create order")
		return
	}
	response.Created(c, order)
}

func (h *Handler) loadForTransition(c *gin.Context) (*models.Event, *models.Order, bool) {
	event := access.GetEvent(c)
	order, err := h.repo.GetByCode(c.Request.Context(), event, c.Param("code"))
	if err != nil {
		h.fail(c, err, "load order")
		return nil, nil, false
	}
	return event, order, true
}

// MarkPaid handles POST .../orders/:code/mark_paid.
func (h *Handler) MarkPaid(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}
	if err := h.transitions.MarkPaid(c.Request.Context(), event, order); err != nil {
		h.fail(c, err, "mark order paid")
		return
	}
	response.OK(c, order)
}

// MarkCanceled handles POST .../orders/:code/mark_canceled.
func (h *Handler) MarkCanceled(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}

	body := struct {
		SendEmail *bool `json:"send_email"`
	}{}
	_ = c.ShouldBindJSON(&body) // body is optional
	sendEmail := body.SendEmail == nil || *body.SendEmail

	if err := h.transitions.MarkCanceled(c.Request.Context(), event, order, sendEmail); err != nil {
		h.fail(c, err, "cancel order")
		return
	}
	response.OK(c, order)
}

// MarkRefunded handles POST .../orders/:code/mark_refunded.
func (h *Handler) MarkRefunded(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}
	if err := h.transitions.MarkRefunded(c.Request.Context(), event, order); err != nil {
		h.fail(c, err, "refund order")
		return
	}
	response.OK(c, order)
}

// MarkPending handles POST .../orders/:code/mark_pending.
func (h *Handler) MarkPending(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}
	if err := h.transitions.MarkPending(c.Request.Context(), event, order); err != nil {
		h.fail(c, err, "mark order pending")
		return
	}
	response.OK(c, order)
}

// MarkExpired handles POST .../orders/:code/mark_expired.
func (h *Handler) MarkExpired(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}
	if err := h.transitions.MarkExpired(c.Request.Context(), event, order); err != nil {
		h.fail(c, err, "expire order")
		return
	}
	response.OK(c, order)
}

// Extend handles POST .../orders/:code/extend.
func (h *Handler) Extend(c *gin.Context) {
	event, order, ok := h.loadForTransition(c)
	if !ok {
		return
	}

	body := struct {
		Expires string `json:"expires"`
		Force   bool   `json:"force"`
	}{}
	if err := c.ShouldBindJSON(&body); err != nil || body.Expires == "" {
		response.ValidationFailed(c, response.FieldErrors{"expires": []string{"This field is required."}})
		return
	}
	expires, err := parseExpires(body.Expires)
	if err != nil {
		response.ValidationFailed(c, response.FieldErrors{"expires": []string{"Date has wrong format."}})
		return
	}
	if expires.Before(time.Now().Truncate(24 * time.Hour)) {
		response.ValidationFailed(c, response.FieldErrors{"expires": []string{"The expiry date cannot be in the past."}})
		return
	}

	if err := h.transitions.Extend(c.Request.Context(), event, order, expires, body.Force); err != nil {
		h.fail(c, err, "extend order")
		return
	}
	response.OK(c, order)
}

func parseExpires(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ListPositions handles GET .../orderpositions.
func (h *Handler) ListPositions(c *gin.Context) {
	event := access.GetEvent(c)

	f := PositionFilter{
		OrderCode:    c.Query("order"),
		OrderStatus:  c.Query("order__status"),
		AttendeeName: c.Query("attendee_name"),
		Secret:       c.Query("secret"),
		Search:       c.Query("search"),
	}
	if v := c.Query("item"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'item'")
			return
		}
		f.Item = &id
	}
	if v := c.Query("item__in"); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := uuid.Parse(part)
			if err != nil {
				response.BadRequest(c, "invalid value for 'item__in'")
				return
			}
			f.ItemIn = append(f.ItemIn, id)
		}
	}
	if v := c.Query("variation"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'variation'")
			return
		}
		f.Variation = &id
	}
	if v := c.Query("subevent"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'subevent'")
			return
		}
		f.SubEvent = &id
	}
	if v := c.Query("subevent__in"); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := uuid.Parse(part)
			if err != nil {
				response.BadRequest(c, "invalid value for 'subevent__in'")
				return
			}
			f.SubEventIn = append(f.SubEventIn, id)
		}
	}

	positions, err := h.repo.ListPositions(c.Request.Context(), event, f)
	if err != nil {
		h.fail(c, err, "list order positions")
		return
	}
	response.OK(c, positions)
}

// RetrievePosition handles GET .../orderpositions/:id.
func (h *Handler) RetrievePosition(c *gin.Context) {
	event := access.GetEvent(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "order position not found")
		return
	}
	pos, err := h.repo.GetPosition(c.Request.Context(), event, id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "order position not found")
		return
	}
	if err != nil {
		h.fail(c, err, "load order position")
		return
	}
	response.OK(c, pos)
}
