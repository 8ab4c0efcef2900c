// Package worker drains the email queue and delivers order mail.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/emaillogs"
	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/pkg/mailer"
	"github.com/ticketline/backend/pkg/queue"
)

// Worker consumes email jobs until its context is canceled.
type Worker struct {
	queue  *queue.Queue
	mailer mailer.Mailer
	logs   *emaillogs.Repository
	logger *zap.Logger
}

// New creates an email worker.
func New(q *queue.Queue, m mailer.Mailer, logs *emaillogs.Repository, logger *zap.Logger) *Worker {
	return &Worker{queue: q, mailer: m, logs: logs, logger: logger}
}

// Run blocks processing jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("email worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				w.logger.Info("email worker stopped")
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	switch job.Type {
	case queue.JobTypeOrderEmail:
		w.processOrderEmail(ctx, job)
	default:
		w.logger.Warn("unknown job type", zap.String("type", string(job.Type)), zap.String("job_id", job.ID))
	}
}

func (w *Worker) processOrderEmail(ctx context.Context, job *queue.Job) {
	var payload queue.OrderEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.Error("invalid order email payload", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	entry := &models.EmailLog{
		EventID:   payload.EventID,
		OrderCode: payload.OrderCode,
		Recipient: payload.RecipientEmail,
		Subject:   payload.Subject,
		Body:      payload.Body,
	}
	if err := w.logs.Create(ctx, entry); err != nil {
		w.logger.Error("email log write failed", zap.Error(err))
	}

	if err := w.mailer.Send(payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		w.logger.Warn("email send failed",
			zap.String("job_id", job.ID),
			zap.String("order", payload.OrderCode),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		if entry.ID != uuid.Nil {
			if lerr := w.logs.MarkFailed(ctx, entry.ID, err.Error()); lerr != nil {
				w.logger.Error("email log update failed", zap.Error(lerr))
			}
		}
		time.Sleep(queue.RetryBackoff)
		if rerr := w.queue.Retry(ctx, job); rerr != nil {
			w.logger.Error("job retry failed", zap.String("job_id", job.ID), zap.Error(rerr))
		}
		return
	}

	if entry.ID != uuid.Nil {
		if err := w.logs.MarkSent(ctx, entry.ID); err != nil {
			w.logger.Error("email log update failed", zap.Error(err))
		}
	}
	w.logger.Info("order email sent",
		zap.String("order", payload.OrderCode),
		zap.String("type", payload.EmailType),
	)
}
