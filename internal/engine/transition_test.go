package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/database/testutil"
	"github.com/studypay/duebell/internal/models"
)

func seedInstallment(t *testing.T, db *gorm.DB, status models.InstallmentStatus, due time.Time) models.Installment {
	t.Helper()

	agency := models.Agency{Name: "Brisbane Study Partners", Timezone: "Australia/Brisbane", OverdueCutoff: "17:00", DueSoonThresholdDays: 4, Active: models.Bool(true)}
	require.NoError(t, db.Create(&agency).Error)

	student := models.Student{AgencyID: agency.ID, FirstName: "Mei", LastName: "Chen", Email: "mei@example.com"}
	require.NoError(t, db.Create(&student).Error)

	plan := models.PaymentPlan{AgencyID: agency.ID, StudentID: student.ID, Currency: "AUD"}
	require.NoError(t, db.Create(&plan).Error)

	inst := models.Installment{
		AgencyID:    agency.ID,
		PlanID:      plan.ID,
		StudentID:   student.ID,
		AmountCents: 125000,
		DueDate:     due,
		Status:      status,
	}
	require.NoError(t, db.Create(&inst).Error)
	return inst
}

func TestApplyTransitionsOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	var announced []models.Notification
	applier := NewApplier(db, nil, WithAnnouncer(func(n models.Notification) {
		announced = append(announced, n)
	}))

	inst := seedInstallment(t, db, models.StatusPending, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	event, err := applier.Apply(context.Background(), inst, now)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, models.StatusOverdue, event.Installment.Status)

	var stored models.Installment
	require.NoError(t, db.First(&stored, "id = ?", inst.ID).Error)
	require.Equal(t, models.StatusOverdue, stored.Status)
	require.NotNil(t, stored.OverdueAt)

	var notification models.Notification
	require.NoError(t, db.First(&notification, "agency_id = ?", inst.AgencyID).Error)
	require.Equal(t, "installment.overdue", notification.Type)
	require.Contains(t, notification.Message, "Mei Chen")
	require.Contains(t, notification.Message, "AUD 1,250.00")

	require.Len(t, announced, 1)
	require.Equal(t, notification.ID, announced[0].ID)

	// Second apply loses the status guard and is a no-op.
	again, err := applier.Apply(context.Background(), inst, now)
	require.NoError(t, err)
	require.Nil(t, again)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestApplySkipsNonPending(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	applier := NewApplier(db, nil)

	inst := seedInstallment(t, db, models.StatusPaid, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	event, err := applier.Apply(context.Background(), inst, time.Now())
	require.NoError(t, err)
	require.Nil(t, event)

	var stored models.Installment
	require.NoError(t, db.First(&stored, "id = ?", inst.ID).Error)
	require.Equal(t, models.StatusPaid, stored.Status)
}

func TestReconcileFindsUnfannedTransitions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	applier := NewApplier(db, nil)

	inst := seedInstallment(t, db, models.StatusOverdue, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	events, err := applier.Reconcile(context.Background(), inst.AgencyID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, inst.ID, events[0].Installment.ID)

	// Once the fan-out stamp is recorded the row drops out of reconcile.
	now := time.Now()
	require.NoError(t, db.Model(&models.Installment{}).
		Where("id = ?", inst.ID).
		Update("overdue_notified_at", now).Error)

	events, err = applier.Reconcile(context.Background(), inst.AgencyID)
	require.NoError(t, err)
	require.Empty(t, events)
}
