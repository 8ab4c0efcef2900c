package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/quotas"
	"github.com/ticketline/backend/pkg/lock"
	"github.com/ticketline/backend/pkg/queue"
)

// TransitionService applies order lifecycle changes.
type TransitionService struct {
	repo     *Repository
	locks    *lock.Manager
	queue    *queue.Queue
	invoices InvoiceIssuer
	logger   *zap.Logger
}

// NewTransitionService wires a transition service.
func NewTransitionService(repo *Repository, locks *lock.Manager, q *queue.Queue, inv InvoiceIssuer, logger *zap.Logger) *TransitionService {
	return &TransitionService{repo: repo, locks: locks, queue: q, invoices: inv, logger: logger}
}

func (s *TransitionService) setStatus(ctx context.Context, tx pgx.Tx, order *models.Order, status string, paymentDate *time.Time) error {
	err := tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, payment_date = $3, last_modified = now()
		 WHERE id = $1 RETURNING last_modified`,
		order.ID, status, paymentDate).Scan(&order.LastModified)
	if err != nil {
		return err
	}
	order.Status = status
	order.PaymentDate = paymentDate
	return nil
}

// revivalQuotaCheck verifies the order's positions still fit their quotas.
// Waiting list entries are not counted: an order that already existed takes
// precedence over people still waiting.
func revivalQuotaCheck(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	demand := map[string]map[string]int{} // subevent -> item -> count
	for _, pos := range order.Positions {
		se := ""
		if pos.SubEventID != nil {
			se = pos.SubEventID.String()
		}
		if demand[se] == nil {
			demand[se] = map[string]int{}
		}
		demand[se][pos.ItemID.String()]++
	}

	now := time.Now()
	checked := map[string]bool{}
	for _, pos := range order.Positions {
		eventQuotas, err := quotas.ForItems(ctx, tx, order.EventID, pos.SubEventID,
			[]uuid.UUID{pos.ItemID})
		if err != nil {
			return err
		}
		for _, quota := range eventQuotas {
			if checked[quota.ID.String()] {
				continue
			}
			checked[quota.ID.String()] = true

			covered, err := quotas.ItemsOf(ctx, tx, quota.ID)
			if err != nil {
				return err
			}
			se := ""
			if quota.SubEventID != nil {
				se = quota.SubEventID.String()
			}
			needed := 0
			for _, id := range covered {
				needed += demand[se][id.String()]
			}
			if needed == 0 {
				continue
			}
			avail, err := quotas.AvailabilityOf(ctx, tx, quota, now, quotas.CheckOptions{})
			if err != nil {
				return err
			}
			if !avail.Sellable(needed) {
				return &RequestError{ErrQuotaExceeded{QuotaName: quota.Name}.Error()}
			}
		}
	}
	return nil
}

// MarkPaid marks a pending or expired order as paid. Reviving an expired
// order re-checks quotas under the event lock.
func (s *TransitionService) MarkPaid(ctx context.Context, event *models.Event, order *models.Order) error {
	if err := CanMarkPaid(order.Status); err != nil {
		return err
	}

	lease, err := s.locks.Acquire(ctx, event.ID)
	if err != nil {
		return err
	}
	defer s.release(lease)

	tx, err := s.repo.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if order.Status == models.OrderStatusExpired {
		if err := revivalQuotaCheck(ctx, tx, order); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := s.setStatus(ctx, tx, order, models.OrderStatusPaid, &now); err != nil {
		return err
	}

	if s.invoices != nil && event.Settings.InvoiceGenerate == "paid" {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM invoices WHERE order_id = $1`, order.ID).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			if err := s.invoices.IssueForOrder(ctx, tx, event, order); err != nil {
				return fmt.Errorf("issue invoice: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Info("order marked paid", zap.String("event", event.Slug), zap.String("code", order.Code))
	s.notify(ctx, event, order, "order_paid", "Payment received for your order: "+order.Code,
		fmt.Sprintf("We have received your payment for order %s. Thank you!", order.Code))
	return nil
}

// MarkCanceled cancels a pending or expired order. The buyer is notified by
// email unless sendEmail is false.
func (s *TransitionService) MarkCanceled(ctx context.Context, event *models.Event, order *models.Order, sendEmail bool) error {
	if err := CanMarkCanceled(order.Status); err != nil {
		return err
	}

	tx, err := s.repo.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.setStatus(ctx, tx, order, models.OrderStatusCanceled, nil); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("order canceled", zap.String("event", event.Slug), zap.String("code", order.Code))
	if sendEmail {
		s.notify(ctx, event, order, "order_canceled", "Order canceled: "+order.Code,
			fmt.Sprintf("Your order %s has been canceled.", order.Code))
	}
	return nil
}

// MarkRefunded marks a paid order as refunded.
func (s *TransitionService) MarkRefunded(ctx context.Context, event *models.Event, order *models.Order) error {
	if err := CanMarkRefunded(order.Status); err != nil {
		return err
	}
	return s.simpleTransition(ctx, event, order, models.OrderStatusRefunded, "order refunded")
}

// MarkPending moves a paid order back to pending.
func (s *TransitionService) MarkPending(ctx context.Context, event *models.Event, order *models.Order) error {
	if err := CanMarkPending(order.Status); err != nil {
		return err
	}
	return s.simpleTransition(ctx, event, order, models.OrderStatusPending, "order marked pending")
}

// MarkExpired expires a pending order, releasing its quota.
func (s *TransitionService) MarkExpired(ctx context.Context, event *models.Event, order *models.Order) error {
	if err := CanMarkExpired(order.Status); err != nil {
		return err
	}
	return s.simpleTransition(ctx, event, order, models.OrderStatusExpired, "order expired")
}

func (s *TransitionService) simpleTransition(ctx context.Context, event *models.Event, order *models.Order, status, logMsg string) error {
	tx, err := s.repo.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	paymentDate := order.PaymentDate
	if status != models.OrderStatusPaid {
		paymentDate = nil
	}
	if err := s.setStatus(ctx, tx, order, status, paymentDate); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Info(logMsg, zap.String("event", event.Slug), zap.String("code", order.Code))
	return nil
}

// Extend moves the expiry date of a pending order, or revives an expired
// order to pending. Revival re-checks quotas under the event lock unless
// force is set; waiting list entries never block a revival.
func (s *TransitionService) Extend(ctx context.Context, event *models.Event, order *models.Order, expires time.Time, force bool) error {
	if err := CanExtend(order.Status); err != nil {
		return err
	}

	// The order stays valid through the whole requested day.
	endOfDay := time.Date(expires.Year(), expires.Month(), expires.Day(), 23, 59, 59, 0, expires.Location())

	if order.Status == models.OrderStatusPending {
		err := s.repo.Pool().QueryRow(ctx,
			`UPDATE orders SET expires = $2, last_modified = now() WHERE id = $1 RETURNING last_modified`,
			order.ID, endOfDay).Scan(&order.LastModified)
		if err != nil {
			return err
		}
		order.Expires = endOfDay
		return nil
	}

	lease, err := s.locks.Acquire(ctx, event.ID)
	if err != nil {
		return err
	}
	defer s.release(lease)

	tx, err := s.repo.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if !force {
		if err := revivalQuotaCheck(ctx, tx, order); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, expires = $3, last_modified = now()
		 WHERE id = $1 RETURNING last_modified`,
		order.ID, models.OrderStatusPending, endOfDay).Scan(&order.LastModified)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	order.Status = models.OrderStatusPending
	order.Expires = endOfDay
	s.logger.Info("order extended", zap.String("event", event.Slug), zap.String("code", order.Code),
		zap.Time("expires", endOfDay))
	return nil
}

func (s *TransitionService) release(lease *lock.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		s.logger.Warn("event lock release failed", zap.Error(err))
	}
}

func (s *TransitionService) notify(ctx context.Context, event *models.Event, order *models.Order, emailType, subject, body string) {
	if order.Email == nil || s.queue == nil {
		return
	}
	err := s.queue.EnqueueOrderEmail(ctx, queue.OrderEmailPayload{
		EmailType:      emailType,
		EventID:        event.ID,
		OrderCode:      order.Code,
		RecipientEmail: *order.Email,
		Locale:         order.Locale,
		Subject:        subject,
		Body:           body,
	})
	if err != nil {
		s.logger.Warn("order email enqueue failed", zap.String("code", order.Code), zap.Error(err))
	}
}
