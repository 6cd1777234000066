package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/pkg/metrics"
)

// OverdueEvent is emitted once per real pending->overdue transition and
// carries everything the notification fan-out needs.
type OverdueEvent struct {
	Installment models.Installment
	OccurredAt  time.Time
}

// Applier performs the pending->overdue status mutation. It is the only
// writer of Installment.Status on the automated path; concurrency is handled
// by the conditional update itself, not by locking.
type Applier struct {
	db       *gorm.DB
	log      *zap.Logger
	announce func(models.Notification)
}

// ApplierOption customises an Applier.
type ApplierOption func(*Applier)

// WithAnnouncer registers a callback invoked after each committed transition
// with the in-app notification that was created, typically a websocket
// broadcast.
func WithAnnouncer(fn func(models.Notification)) ApplierOption {
	return func(a *Applier) { a.announce = fn }
}

// NewApplier constructs an Applier.
func NewApplier(db *gorm.DB, log *zap.Logger, opts ...ApplierOption) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Applier{db: db, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply transitions one installment to overdue with a conditional update
// guarded on the current status. RowsAffected == 0 means another pass (or a
// payment) won the race and no event is emitted. On a real transition the
// in-app notification is created in the same transaction, so a crash cannot
// separate the two.
func (a *Applier) Apply(ctx context.Context, inst models.Installment, now time.Time) (*OverdueEvent, error) {
	var (
		transitioned bool
		created      models.Notification
	)

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Installment{}).
			Where("id = ? AND status = ?", inst.ID, models.StatusPending).
			Updates(map[string]any{
				"status":     models.StatusOverdue,
				"overdue_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("transition update: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		transitioned = true

		created = a.buildNotification(tx, inst, now)
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create in-app notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, nil
	}

	metrics.Transitions.WithLabelValues(string(models.StatusOverdue)).Inc()
	a.log.Info("installment transitioned to overdue",
		zap.String("installment_id", inst.ID),
		zap.String("agency_id", inst.AgencyID),
		zap.Int("cycle", inst.Cycle),
	)

	if a.announce != nil {
		a.announce(created)
	}

	inst.Status = models.StatusOverdue
	inst.OverdueAt = &now
	return &OverdueEvent{Installment: inst, OccurredAt: now}, nil
}

func (a *Applier) buildNotification(tx *gorm.DB, inst models.Installment, now time.Time) models.Notification {
	subject := "An installment"
	var student models.Student
	if err := tx.First(&student, "id = ?", inst.StudentID).Error; err == nil {
		subject = fmt.Sprintf("%s's installment", student.FullName())
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		a.log.Warn("student lookup for notification failed",
			zap.String("installment_id", inst.ID), zap.Error(err))
	}

	currency := "AUD"
	var plan models.PaymentPlan
	if err := tx.First(&plan, "id = ?", inst.PlanID).Error; err == nil && plan.Currency != "" {
		currency = plan.Currency
	}

	meta, _ := json.Marshal(map[string]any{
		"installment_id": inst.ID,
		"plan_id":        inst.PlanID,
		"student_id":     inst.StudentID,
		"amount_cents":   inst.AmountCents,
		"due_date":       inst.DueDate.Format("2006-01-02"),
		"cycle":          inst.Cycle,
	})

	return models.Notification{
		AgencyID: inst.AgencyID,
		Type:     "installment.overdue",
		Title:    "Installment overdue",
		Message: fmt.Sprintf("%s of %s was due on %s and is now overdue.",
			subject, FormatAmount(inst.AmountCents, currency), inst.DueDate.Format("2 Jan 2006")),
		ActionURL: fmt.Sprintf("/plans/%s/installments/%s", inst.PlanID, inst.ID),
		Metadata:  datatypes.JSON(meta),
	}
}

// Reconcile returns events for installments that are already overdue but were
// never fanned out, covering a crash between the status update and dispatch.
// The dedup ledger makes re-emitting an already-handled event harmless.
func (a *Applier) Reconcile(ctx context.Context, agencyID string) ([]OverdueEvent, error) {
	var rows []models.Installment
	err := a.db.WithContext(ctx).
		Where("agency_id = ? AND status = ? AND overdue_notified_at IS NULL", agencyID, models.StatusOverdue).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reconcile scan: %w", err)
	}

	events := make([]OverdueEvent, 0, len(rows))
	for _, inst := range rows {
		occurred := time.Now()
		if inst.OverdueAt != nil {
			occurred = *inst.OverdueAt
		}
		events = append(events, OverdueEvent{Installment: inst, OccurredAt: occurred})
	}
	return events, nil
}
