package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/internal/notifications"
	apperrors "github.com/studypay/duebell/pkg/errors"
)

// NotificationDTO is the API-facing shape of a bell-feed entry.
type NotificationDTO struct {
	ID        string         `json:"id"`
	AgencyID  string         `json:"agency_id"`
	StaffID   *string        `json:"staff_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines the attributes of a new bell-feed entry.
type CreateNotificationInput struct {
	AgencyID  string
	StaffID   *string
	Type      string
	Title     string
	Message   string
	ActionURL string
	Metadata  map[string]any
}

// ListNotificationsInput filters the bell feed for one agency.
type ListNotificationsInput struct {
	AgencyID string
	StaffID  *string
	IsRead   *bool
	Limit    int
	Offset   int
}

// NotificationService manages the in-app notification store. Rows are
// created once and mutated only through the read flag.
type NotificationService struct {
	db  *gorm.DB
	hub *notifications.Hub
}

// NewNotificationService constructs a NotificationService. The hub is
// optional; without it events are stored but not streamed.
func NewNotificationService(db *gorm.DB, hub *notifications.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub}, nil
}

// Create persists a bell-feed entry and broadcasts it to connected
// subscribers of the agency.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	agencyID := strings.TrimSpace(input.AgencyID)
	if agencyID == "" {
		return nil, errors.New("notification service: agency id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, errors.New("notification service: type is required")
	}

	notification := models.Notification{
		AgencyID:  agencyID,
		StaffID:   input.StaffID,
		Type:      notificationType,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		ActionURL: strings.TrimSpace(input.ActionURL),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	s.broadcast(agencyID, notifications.Event{
		Event:        "notification.created",
		Notification: dto,
	})
	return &dto, nil
}

// Announce pushes a notification row created elsewhere (the transition
// applier writes it inside its own transaction) to connected subscribers.
func (s *NotificationService) Announce(notification models.Notification) {
	dto := mapNotification(notification)
	s.broadcast(notification.AgencyID, notifications.Event{
		Event:        "notification.created",
		Notification: dto,
	})
}

// List returns bell-feed entries for an agency ordered by recency, plus the
// total matching count for pagination.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, int64, error) {
	ctx = ensureContext(ctx)
	agencyID := strings.TrimSpace(input.AgencyID)
	if agencyID == "" {
		return nil, 0, errors.New("notification service: agency id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("agency_id = ?", agencyID)
	if input.StaffID != nil {
		query = query.Where("staff_id IS NULL OR staff_id = ?", *input.StaffID)
	}
	if input.IsRead != nil {
		query = query.Where("is_read = ?", *input.IsRead)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items, total, nil
}

// MarkRead sets the read flag. Marking an already-read notification is a
// no-op returning the current state; the original read timestamp survives.
func (s *NotificationService) MarkRead(ctx context.Context, agencyID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND agency_id = ?", notificationID, agencyID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if notification.IsRead {
		dto := mapNotification(notification)
		return &dto, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	notification.IsRead = true
	notification.ReadAt = &now
	dto := mapNotification(notification)

	s.broadcast(agencyID, notifications.Event{
		Event:          "notification.read",
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// MarkAllRead marks every unread notification of the agency as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, agencyID string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("agency_id = ? AND is_read = ?", agencyID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(agencyID, notifications.Event{
		Event: "notification.read_all",
	})
	return nil
}

func (s *NotificationService) broadcast(agencyID string, payload notifications.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(agencyID, payload)
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		AgencyID:  row.AgencyID,
		StaffID:   row.StaffID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		ActionURL: row.ActionURL,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
	}
}
