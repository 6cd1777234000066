package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/pkg/mail"
	"github.com/studypay/duebell/pkg/metrics"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 15 * time.Second
	defaultBackoffBase    = time.Second
)

// DispatchSummary aggregates per-recipient outcomes of one fan-out.
type DispatchSummary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Add merges another summary into this one.
func (s *DispatchSummary) Add(other DispatchSummary) {
	s.Sent += other.Sent
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Dispatcher sends rendered messages through the transport and owns every
// write to the dedup ledger. The conditional ledger insert, not a lock, is
// what serialises concurrent passes: whoever inserts the row handles the
// recipient, everyone else counts a skip.
type Dispatcher struct {
	db     *gorm.DB
	mailer mail.Mailer
	log    *zap.Logger

	maxAttempts    int
	attemptTimeout time.Duration
	backoffBase    time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts bounds delivery attempts per recipient.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds each transport call.
func WithAttemptTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.attemptTimeout = timeout
		}
	}
}

// WithBackoffBase overrides the first retry delay, primarily for tests.
func WithBackoffBase(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if base > 0 {
			d.backoffBase = base
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, mailer mail.Mailer, log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		db:             db,
		mailer:         mailer,
		log:            log,
		maxAttempts:    defaultMaxAttempts,
		attemptTimeout: defaultAttemptTimeout,
		backoffBase:    defaultBackoffBase,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch fans rendered out to recipients, at most one send per (event
// occurrence, event type, address) ever. Failures are isolated per
// recipient and reported in the summary, never as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, recipients []Recipient, rendered Rendered) DispatchSummary {
	var summary DispatchSummary

	for _, recipient := range recipients {
		outcome := d.dispatchOne(ctx, event, recipient, rendered)
		metrics.Dispatches.WithLabelValues(string(event.Type), outcome).Inc()
		switch outcome {
		case "sent":
			summary.Sent++
		case "skipped":
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	return summary
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event Event, recipient Recipient, rendered Rendered) string {
	record := models.DispatchRecord{
		AgencyID:         event.AgencyID,
		InstallmentID:    event.InstallmentID,
		EventKey:         event.Key,
		EventType:        event.Type,
		RecipientAddress: recipient.Address,
		RecipientType:    recipient.Type,
		Status:           models.DeliveryPending,
	}

	// Insert-or-detect-conflict on the dedup index. RowsAffected == 0 means
	// another pass (or an earlier run) already owns this key.
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		// No ledger row was written, so the next scheduled run reconsiders
		// this recipient.
		d.log.Error("ledger insert failed",
			zap.String("event_key", event.Key),
			zap.String("recipient", recipient.Address),
			zap.Error(res.Error),
		)
		return "failed"
	}
	if res.RowsAffected == 0 {
		return "skipped"
	}

	status, messageID, attempts, sendErr := d.deliver(ctx, recipient, rendered)

	updates := map[string]any{
		"status":   status,
		"attempts": attempts,
	}
	if messageID != "" {
		updates["provider_message_id"] = messageID
	}
	if sendErr != nil {
		updates["error_message"] = sendErr.Error()
	}

	if err := d.db.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		d.log.Error("ledger status update failed",
			zap.String("event_key", event.Key),
			zap.String("recipient", recipient.Address),
			zap.Error(err),
		)
	}

	if status == models.DeliverySent {
		return "sent"
	}

	d.log.Warn("delivery failed",
		zap.String("event_key", event.Key),
		zap.String("event_type", string(event.Type)),
		zap.String("recipient", recipient.Address),
		zap.Int("attempts", attempts),
		zap.Error(sendErr),
	)
	return "failed"
}

// deliver attempts the transport call with bounded exponential backoff.
// Permanent failures stop immediately; transient ones retry until the
// attempt ceiling, after which the failure is final and will not be retried
// by later runs (the ledger row already exists).
func (d *Dispatcher) deliver(ctx context.Context, recipient Recipient, rendered Rendered) (models.DeliveryStatus, string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		result, err := d.mailer.Send(attemptCtx, mail.Message{
			To:      recipient.Address,
			Subject: rendered.Subject,
			Body:    rendered.Body,
		})
		cancel()

		if err == nil {
			return models.DeliverySent, result.MessageID, attempt, nil
		}

		lastErr = err
		if mail.IsPermanent(err) {
			return models.DeliveryFailed, "", attempt, err
		}
		if ctx.Err() != nil {
			return models.DeliveryFailed, "", attempt, ctx.Err()
		}

		if attempt < d.maxAttempts {
			delay := d.backoffBase << (attempt - 1)
			if sleepErr := d.sleep(ctx, delay); sleepErr != nil {
				return models.DeliveryFailed, "", attempt, sleepErr
			}
		}
	}

	return models.DeliveryFailed, "", d.maxAttempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
