package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studypay/duebell/internal/middleware"
	"github.com/studypay/duebell/internal/notifications"
	"github.com/studypay/duebell/internal/services"
	apperrors "github.com/studypay/duebell/pkg/errors"
	"github.com/studypay/duebell/pkg/response"
)

// NotificationHandler serves the in-app bell feed.
type NotificationHandler struct {
	svc *services.NotificationService
	hub *notifications.Hub
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(svc *services.NotificationService, hub *notifications.Hub) (*NotificationHandler, error) {
	if svc == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{svc: svc, hub: hub}, nil
}

// List returns the agency's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	input := services.ListNotificationsInput{
		AgencyID: agencyID(c),
		StaffID:  staffID(c),
		Limit:    parseIntQuery(c, "limit", 25),
		Offset:   parseIntQuery(c, "offset", 0),
	}

	if raw := strings.TrimSpace(c.Query("is_read")); raw != "" {
		isRead := raw == "true" || raw == "1"
		input.IsRead = &isRead
	}

	items, total, err := h.svc.List(requestContext(c), input)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to list notifications"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  input.Limit,
		Offset: input.Offset,
		Total:  total,
	})
}

// MarkRead flags one notification as read; repeating the call is a no-op.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	dto, err := h.svc.MarkRead(requestContext(c), agencyID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead flags every unread notification of the agency.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(requestContext(c), agencyID(c)); err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to mark notifications read"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Stream upgrades to a websocket subscribed to the agency's bell feed.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, apperrors.New("STREAM_DISABLED", "Realtime stream is not enabled", http.StatusServiceUnavailable))
		return
	}
	h.hub.Serve(agencyID(c), c.Writer, c.Request)
}

func agencyID(c *gin.Context) string {
	return c.GetString(middleware.ContextAgencyID)
}

func staffID(c *gin.Context) *string {
	if value := c.GetString(middleware.ContextStaffID); value != "" {
		return &value
	}
	return nil
}
