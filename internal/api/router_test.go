package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/app"
	"github.com/studypay/duebell/internal/database/testutil"
	"github.com/studypay/duebell/internal/engine"
	"github.com/studypay/duebell/internal/middleware"
	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/internal/notifications"
	"github.com/studypay/duebell/pkg/mail"
)

const testTriggerKey = "trigger-me"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	eng := engine.NewEngine(db, mail.NewConsoleMailer(nil), nil,
		engine.WithClock(func() time.Time {
			return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
		}))

	cfg := &app.Config{}
	cfg.Engine.TriggerKey = testTriggerKey

	router, err := NewRouter(db, eng, notifications.NewHub(), cfg)
	require.NoError(t, err)
	return router, db
}

func seedAgency(t *testing.T, db *gorm.DB) models.Agency {
	t.Helper()
	agency := models.Agency{
		Name: "Brisbane Study Partners", Timezone: "Australia/Brisbane",
		OverdueCutoff: "17:00", DueSoonThresholdDays: 4, Active: models.Bool(true),
	}
	require.NoError(t, db.Create(&agency).Error)
	return agency
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestEngineRunRequiresKey(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/engine/run", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/engine/run", nil)
	req.Header.Set(middleware.HeaderEngineKey, "not-the-key")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEngineRunReturnsSummary(t *testing.T) {
	router, db := newTestRouter(t)
	seedAgency(t, db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/engine/run", nil)
	req.Header.Set(middleware.HeaderEngineKey, testTriggerKey)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			InstallmentsScanned int `json:"installments_scanned"`
			Transitioned        int `json:"transitioned"`
			Errors              int `json:"errors"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Zero(t, body.Data.Errors)
}

func TestPaymentReceivedUnknownInstallment(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/events/payment-received",
		strings.NewReader(`{"installment_id":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderEngineKey, testTriggerKey)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentReceivedRequiresInstallmentID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/events/payment-received",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderEngineKey, testTriggerKey)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantRoutesRequireAgencyHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationFeedScopedToAgency(t *testing.T) {
	router, db := newTestRouter(t)
	agency := seedAgency(t, db)
	other := models.Agency{
		Name: "Melbourne Pathways", Timezone: "Australia/Melbourne",
		OverdueCutoff: "17:00", DueSoonThresholdDays: 4, Active: models.Bool(true),
	}
	require.NoError(t, db.Create(&other).Error)

	require.NoError(t, db.Create(&models.Notification{
		AgencyID: agency.ID, Type: "installment.overdue",
		Title: "Installment overdue", Message: "AUD 500.00 overdue",
	}).Error)
	require.NoError(t, db.Create(&models.Notification{
		AgencyID: other.ID, Type: "installment.overdue",
		Title: "Installment overdue", Message: "other agency",
	}).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set(middleware.HeaderAgencyID, agency.ID)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []struct {
			AgencyID string `json:"agency_id"`
		} `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, agency.ID, body.Data[0].AgencyID)
	require.EqualValues(t, 1, body.Meta.Total)
}

func TestMarkReadThroughRouter(t *testing.T) {
	router, db := newTestRouter(t)
	agency := seedAgency(t, db)

	row := models.Notification{
		AgencyID: agency.ID, Type: "installment.overdue",
		Title: "Installment overdue", Message: "AUD 500.00 overdue",
	}
	require.NoError(t, db.Create(&row).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/notifications/"+row.ID+"/read", nil)
	req.Header.Set(middleware.HeaderAgencyID, agency.ID)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.True(t, stored.IsRead)
	require.NotNil(t, stored.ReadAt)
}

func TestCreateTemplateRejectsStrayBraces(t *testing.T) {
	router, db := newTestRouter(t)
	agency := seedAgency(t, db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/templates",
		strings.NewReader(`{"name":"Overdue v2","event_type":"overdue","subject":"Hi {student_name}","body":"Broken {placeholder"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAgencyID, agency.ID)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
