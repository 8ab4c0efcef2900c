package invoices

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/access"
	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/pkg/response"
)

// Handler exposes the invoice resource.
type Handler struct {
	repo      *Repository
	generator *Generator
	logger    *zap.Logger
}

// NewHandler creates an invoice handler.
func NewHandler(repo *Repository, generator *Generator, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, generator: generator, logger: logger}
}

// List handles GET .../invoices.
func (h *Handler) List(c *gin.Context) {
	event := access.GetEvent(c)

	f := ListFilter{
		OrderCode: c.Query("order"),
		Number:    c.Query("number"),
		Locale:    c.Query("locale"),
		Refers:    c.Query("refers"),
	}
	if v := c.Query("is_cancellation"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'is_cancellation'")
			return
		}
		f.IsCancellation = &b
	}

	invoices, err := h.repo.List(c.Request.Context(), event, f)
	if err != nil {
		h.logger.Error("list invoices failed", zap.Error(err))
		response.Internal(c, "could not list invoices")
		return
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	response.OK(c, invoices)
}

// Retrieve handles GET .../invoices/:number.
func (h *Handler) Retrieve(c *gin.Context) {
	event := access.GetEvent(c)
	inv, err := h.repo.GetByNumber(c.Request.Context(), event, c.Param("number"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "invoice not found")
		return
	}
	if err != nil {
		h.logger.Error("load invoice failed", zap.Error(err))
		response.Internal(c, "could not load invoice")
		return
	}
	response.OK(c, inv)
}

func (h *Handler) loadOrder(c *gin.Context, tx pgx.Tx, inv *models.Invoice) (*models.Order, bool) {
	var o models.Order
	err := tx.QueryRow(c.Request.Context(),
		`SELECT id, event_id, code, status, locale FROM orders WHERE id = $1`, inv.OrderID).Scan(
		&o.ID, &o.EventID, &o.Code, &o.Status, &o.Locale)
	if err != nil {
		h.logger.Error("load invoice order failed", zap.Error(err))
		response.Internal(c, "could not load invoice")
		return nil, false
	}
	return &o, true
}

// Regenerate handles POST .../invoices/:number/regenerate. The invoice is
// rebuilt in place from the order's current state.
func (h *Handler) Regenerate(c *gin.Context) {
	event := access.GetEvent(c)
	inv, err := h.repo.GetByNumber(c.Request.Context(), event, c.Param("number"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "invoice not found")
		return
	}
	if err != nil {
		h.logger.Error("load invoice failed", zap.Error(err))
		response.Internal(c, "could not load invoice")
		return
	}

	tx, err := h.repo.Pool().Begin(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not regenerate invoice")
		return
	}
	defer tx.Rollback(c.Request.Context())

	order, ok := h.loadOrder(c, tx, inv)
	if !ok {
		return
	}
	if err := h.generator.Regenerate(c.Request.Context(), tx, event, inv, order); err != nil {
		h.logger.Error("regenerate invoice failed", zap.String("number", inv.Number), zap.Error(err))
		response.Internal(c, "could not regenerate invoice")
		return
	}
	if err := tx.Commit(c.Request.Context()); err != nil {
		response.Internal(c, "could not regenerate invoice")
		return
	}
	response.NoContent(c)
}

// Reissue handles POST .../invoices/:number/reissue. The invoice is voided
// by a cancellation and a fresh invoice is generated.
func (h *Handler) Reissue(c *gin.Context) {
	event := access.GetEvent(c)
	inv, err := h.repo.GetByNumber(c.Request.Context(), event, c.Param("number"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "invoice not found")
		return
	}
	if err != nil {
		h.logger.Error("load invoice failed", zap.Error(err))
		response.Internal(c, "could not load invoice")
		return
	}

	tx, err := h.repo.Pool().Begin(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not reissue invoice")
		return
	}
	defer tx.Rollback(c.Request.Context())

	order, ok := h.loadOrder(c, tx, inv)
	if !ok {
		return
	}
	if err := h.generator.Reissue(c.Request.Context(), tx, event, inv, order); err != nil {
		h.logger.Error("reissue invoice failed", zap.String("number", inv.Number), zap.Error(err))
		response.Internal(c, "could not reissue invoice")
		return
	}
	if err := tx.Commit(c.Request.Context()); err != nil {
		response.Internal(c, "could not reissue invoice")
		return
	}
	response.NoContent(c)
}
