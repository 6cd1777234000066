package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInstallmentEventKeyIncludesCycle(t *testing.T) {
	inst := Installment{Cycle: 1}
	inst.ID = "abc"
	require.Equal(t, "installment:abc:cycle:1", inst.EventKey())

	inst.Cycle = 2
	require.Equal(t, "installment:abc:cycle:2", inst.EventKey())
}

func TestInstallmentStatusValid(t *testing.T) {
	for _, s := range []InstallmentStatus{StatusDraft, StatusPending, StatusOverdue, StatusPartial, StatusPaid, StatusCancelled} {
		require.True(t, s.Valid(), string(s))
	}
	require.False(t, InstallmentStatus("due_soon").Valid())
}

func TestEventAndRecipientEnums(t *testing.T) {
	require.True(t, EventDueSoon.Valid())
	require.True(t, RecipientSalesAgent.Valid())
	require.False(t, EventType("reminder").Valid())
	require.False(t, RecipientType("parent").Valid())
	require.Len(t, RecipientTypes(), 4)
}

func TestAgencyLocationFallsBackToUTC(t *testing.T) {
	agency := Agency{Timezone: "Australia/Brisbane"}
	loc := agency.Location()
	require.Equal(t, "Australia/Brisbane", loc.String())

	broken := Agency{Timezone: "Mars/Olympus"}
	require.Equal(t, time.UTC, broken.Location())
}

func TestStaffMemberNotificationsOn(t *testing.T) {
	require.True(t, StaffMember{}.NotificationsOn(), "unset preference follows the column default")
	require.True(t, StaffMember{NotificationsEnabled: Bool(true)}.NotificationsOn())
	require.False(t, StaffMember{NotificationsEnabled: Bool(false)}.NotificationsOn())
}

func TestStudentFullName(t *testing.T) {
	require.Equal(t, "Mei Chen", Student{FirstName: "Mei", LastName: "Chen"}.FullName())
	require.Equal(t, "Mei", Student{FirstName: "Mei"}.FullName())
}
