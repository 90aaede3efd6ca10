// Package reaper permanently deletes archived companies once their
// grace period has elapsed. It runs as a background loop next to the
// request handlers; each sweep is retried with exponential backoff so
// a transient store failure does not skip a cycle.
package reaper

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/models"
)

// Store is the slice of the repository the reaper needs.
type Store interface {
	CompaniesDueForDeletion(ctx context.Context, now time.Time) ([]models.Company, error)
	DeleteCompany(ctx context.Context, id uuid.UUID) error
}

// EventProducer publishes deletion events for reaped companies.
type EventProducer interface {
	Produce(eventType events.EventType, actorID, entityID uuid.UUID, payload interface{})
}

type Reaper struct {
	store    Store
	producer EventProducer
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

func New(store Store, producer EventProducer, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		store:    store,
		producer: producer,
		clock:    clk,
		interval: interval,
		logger:   logger.Named("reaper"),
	}
}

// Run sweeps on every interval tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.sweepWithRetry(ctx); err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) sweepWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return r.Sweep(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
}

// Sweep deletes every company whose stored deletion instant has
// passed. The comparison uses the stamped deleted_at, never a
// recomputed delta.
func (r *Reaper) Sweep(ctx context.Context) error {
	due, err := r.store.CompaniesDueForDeletion(ctx, r.clock.Now())
	if err != nil {
		return err
	}

	for _, company := range due {
		if err := r.store.DeleteCompany(ctx, company.ID); err != nil {
			return err
		}
		r.logger.Info("reaped company",
			zap.String("company_id", company.ID.String()),
			zap.String("slug", company.Slug),
		)
		r.producer.Produce(events.CompanyDeleted, uuid.Nil, company.ID, map[string]interface{}{
			"reaped": true,
		})
	}
	return nil
}
