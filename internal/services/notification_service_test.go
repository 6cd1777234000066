package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/database/testutil"
	"github.com/studypay/duebell/internal/models"
)

func newNotificationService(t *testing.T) (*NotificationService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	return svc, db
}

func TestCreateAndListNotifications(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		AgencyID: "agency-1",
		Type:     "installment.overdue",
		Title:    "Installment overdue",
		Message:  "Mei Chen's installment is overdue.",
		Metadata: map[string]any{"installment_id": "inst-1"},
	})
	require.NoError(t, err)
	require.False(t, created.IsRead)
	require.Equal(t, "inst-1", created.Metadata["installment_id"])

	_, err = svc.Create(ctx, CreateNotificationInput{
		AgencyID: "agency-2",
		Type:     "installment.overdue",
		Title:    "Other tenant",
	})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, ListNotificationsInput{AgencyID: "agency-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, created.ID, items[0].ID, "listing is tenant scoped")
}

func TestCreateRequiresAgencyAndType(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateNotificationInput{Type: "x"})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1"})
	require.Error(t, err)
}

func TestListFiltersByReadFlag(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1", Type: "t", Title: "a"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1", Type: "t", Title: "b"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "agency-1", first.ID)
	require.NoError(t, err)

	unread := false
	items, total, err := svc.List(ctx, ListNotificationsInput{AgencyID: "agency-1", IsRead: &unread})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, "b", items[0].Title)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1", Type: "t", Title: "a"})
	require.NoError(t, err)

	first, err := svc.MarkRead(ctx, "agency-1", created.ID)
	require.NoError(t, err)
	require.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)

	second, err := svc.MarkRead(ctx, "agency-1", created.ID)
	require.NoError(t, err)
	require.True(t, second.IsRead)
	require.Equal(t, first.ReadAt.Unix(), second.ReadAt.Unix(), "read timestamp survives repeat marks")
}

func TestMarkReadScopedToAgency(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1", Type: "t", Title: "a"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "agency-2", created.ID)
	require.Error(t, err, "another tenant cannot touch the notification")
}

func TestMarkAllRead(t *testing.T) {
	svc, db := newNotificationService(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-1", Type: "t", Title: title})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateNotificationInput{AgencyID: "agency-2", Type: "t", Title: "other"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, "agency-1"))

	var unread int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("agency_id = ? AND is_read = ?", "agency-1", false).
		Count(&unread).Error)
	require.Zero(t, unread)

	require.NoError(t, db.Model(&models.Notification{}).
		Where("agency_id = ? AND is_read = ?", "agency-2", false).
		Count(&unread).Error)
	require.EqualValues(t, 1, unread, "other tenants are untouched")
}
