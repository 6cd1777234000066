package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/database/testutil"
	"github.com/studypay/duebell/internal/models"
	apperrors "github.com/studypay/duebell/pkg/errors"
)

func newSettingsFixture(t *testing.T) (*SettingsService, *gorm.DB, models.Agency) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewSettingsService(db)
	require.NoError(t, err)

	agency := models.Agency{
		Name: "Brisbane Study Partners", Timezone: "Australia/Brisbane",
		OverdueCutoff: "17:00", DueSoonThresholdDays: 4, Active: models.Bool(true),
	}
	require.NoError(t, db.Create(&agency).Error)
	return svc, db, agency
}

func TestEngineSettingsRoundTrip(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	settings, err := svc.GetEngineSettings(ctx, agency.ID)
	require.NoError(t, err)
	require.Equal(t, "Australia/Brisbane", settings.Timezone)
	require.Equal(t, 4, settings.DueSoonThresholdDays)

	updated, err := svc.UpdateEngineSettings(ctx, agency.ID, UpdateEngineSettingsInput{
		Timezone:             "Asia/Kolkata",
		OverdueCutoff:        "18:30",
		DueSoonThresholdDays: 7,
	})
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", updated.Timezone)
	require.Equal(t, "18:30", updated.OverdueCutoff)
	require.Equal(t, 7, updated.DueSoonThresholdDays)

	reloaded, err := svc.GetEngineSettings(ctx, agency.ID)
	require.NoError(t, err)
	require.Equal(t, "Asia/Kolkata", reloaded.Timezone)
}

func TestUpdateEngineSettingsRejectsBadInput(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	cases := []UpdateEngineSettingsInput{
		{Timezone: "Mars/Olympus", OverdueCutoff: "17:00", DueSoonThresholdDays: 4},
		{Timezone: "UTC", OverdueCutoff: "25:00", DueSoonThresholdDays: 4},
		{Timezone: "UTC", OverdueCutoff: "17:00", DueSoonThresholdDays: 0},
		{Timezone: "UTC", OverdueCutoff: "17:00", DueSoonThresholdDays: 31},
	}
	for _, input := range cases {
		_, err := svc.UpdateEngineSettings(ctx, agency.ID, input)
		require.Error(t, err)
	}
}

func TestListRulesMaterialisesMatrix(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)

	rules, err := svc.ListRules(context.Background(), agency.ID)
	require.NoError(t, err)
	require.Len(t, rules, 12, "4 recipient types x 3 event types")
}

func TestUpsertRuleTogglesAndRebinds(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	rule, err := svc.UpsertRule(ctx, agency.ID, UpsertRuleInput{
		RecipientType: models.RecipientStudent,
		EventType:     models.EventOverdue,
		Enabled:       true,
	})
	require.NoError(t, err)
	require.True(t, rule.Enabled)

	rule, err = svc.UpsertRule(ctx, agency.ID, UpsertRuleInput{
		RecipientType: models.RecipientStudent,
		EventType:     models.EventOverdue,
		Enabled:       false,
	})
	require.NoError(t, err)
	require.False(t, rule.Enabled, "upsert replaces, never duplicates")

	rules, err := svc.ListRules(ctx, agency.ID)
	require.NoError(t, err)
	count := 0
	for _, r := range rules {
		if r.RecipientType == models.RecipientStudent && r.EventType == models.EventOverdue {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestUpsertRuleRejectsForeignTemplate(t *testing.T) {
	svc, db, agency := newSettingsFixture(t)
	ctx := context.Background()

	foreign := models.MessageTemplate{
		AgencyID: "someone-else", Name: "x", EventType: models.EventOverdue,
		Subject: "s", Body: "<p>b</p>",
	}
	require.NoError(t, db.Create(&foreign).Error)

	_, err := svc.UpsertRule(ctx, agency.ID, UpsertRuleInput{
		RecipientType: models.RecipientStudent,
		EventType:     models.EventOverdue,
		Enabled:       true,
		TemplateID:    &foreign.ID,
	})
	require.Error(t, err)
}

func TestUpsertRuleRejectsEventMismatch(t *testing.T) {
	svc, db, agency := newSettingsFixture(t)
	ctx := context.Background()

	tmpl := models.MessageTemplate{
		AgencyID: agency.ID, Name: "due soon only", EventType: models.EventDueSoon,
		Subject: "s", Body: "<p>b</p>",
	}
	require.NoError(t, db.Create(&tmpl).Error)

	_, err := svc.UpsertRule(ctx, agency.ID, UpsertRuleInput{
		RecipientType: models.RecipientStudent,
		EventType:     models.EventOverdue,
		Enabled:       true,
		TemplateID:    &tmpl.ID,
	})
	require.Error(t, err)
}

func TestCreateTemplateSanitizesBody(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, agency.ID, TemplateInput{
		Name:      "reminder",
		EventType: models.EventDueSoon,
		Subject:   "Payment of {{amount}} due {{due_date}}",
		Body:      `<p>Hi {{recipient_name}}</p><script>alert(1)</script><b onclick="x()">soon</b>`,
	})
	require.NoError(t, err)
	require.False(t, tmpl.Active, "templates start inactive")
	require.NotContains(t, tmpl.Body, "<script>")
	require.NotContains(t, tmpl.Body, "onclick")
	require.Contains(t, tmpl.Body, "{{recipient_name}}")
	require.Contains(t, tmpl.Body, "<b>soon</b>")
}

func TestCreateTemplateRejectsBadPlaceholders(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	cases := []TemplateInput{
		{Name: "unknown", EventType: models.EventOverdue, Subject: "{{nonsense}}", Body: "<p>b</p>"},
		{Name: "wrong event", EventType: models.EventOverdue, Subject: "ok", Body: "<p>{{days_until_due}}</p>"},
		{Name: "malformed", EventType: models.EventOverdue, Subject: "{{amount", Body: "<p>b</p>"},
	}
	for _, input := range cases {
		_, err := svc.CreateTemplate(ctx, agency.ID, input)
		require.Error(t, err, "template %q must be rejected", input.Name)

		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		require.Equal(t, 422, appErr.StatusCode)
	}
}

func TestActivateTemplate(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, agency.ID, TemplateInput{
		Name:      "reminder",
		EventType: models.EventDueSoon,
		Subject:   "Due in {{days_until_due}} days",
		Body:      "<p>Hi {{recipient_name}}, {{amount}} is due {{due_date}}.</p>",
	})
	require.NoError(t, err)

	activated, err := svc.ActivateTemplate(ctx, agency.ID, tmpl.ID)
	require.NoError(t, err)
	require.True(t, activated.Active)

	_, err = svc.ActivateTemplate(ctx, agency.ID, "missing-id")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateTemplateRevalidates(t *testing.T) {
	svc, _, agency := newSettingsFixture(t)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, agency.ID, TemplateInput{
		Name:      "reminder",
		EventType: models.EventDueSoon,
		Subject:   "ok",
		Body:      "<p>ok</p>",
	})
	require.NoError(t, err)

	_, err = svc.UpdateTemplate(ctx, agency.ID, tmpl.ID, TemplateInput{
		Name:      "reminder",
		EventType: models.EventDueSoon,
		Subject:   "{{bogus}}",
		Body:      "<p>ok</p>",
	})
	require.Error(t, err)

	updated, err := svc.UpdateTemplate(ctx, agency.ID, tmpl.ID, TemplateInput{
		Name:      "renamed",
		EventType: models.EventDueSoon,
		Subject:   "Due {{due_date}}",
		Body:      "<p>{{amount}}</p>",
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
}
