package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studypay/duebell/internal/database"
	"github.com/studypay/duebell/internal/engine"
	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/internal/notify"
	apperrors "github.com/studypay/duebell/pkg/errors"
)

// EngineSettingsDTO is the tenant-facing engine configuration.
type EngineSettingsDTO struct {
	AgencyID             string `json:"agency_id"`
	Timezone             string `json:"timezone"`
	OverdueCutoff        string `json:"overdue_cutoff"`
	DueSoonThresholdDays int    `json:"due_soon_threshold_days"`
	Active               bool   `json:"active"`
}

// UpdateEngineSettingsInput carries the mutable engine settings.
type UpdateEngineSettingsInput struct {
	Timezone             string `json:"timezone" validate:"required"`
	OverdueCutoff        string `json:"overdue_cutoff" validate:"required"`
	DueSoonThresholdDays int    `json:"due_soon_threshold_days" validate:"required,min=1,max=30"`
}

// UpsertRuleInput toggles one (recipient, event) notification rule.
type UpsertRuleInput struct {
	RecipientType models.RecipientType `json:"recipient_type" validate:"required,oneof=student agency_user partner_institution sales_agent"`
	EventType     models.EventType     `json:"event_type" validate:"required,oneof=due_soon overdue payment_received"`
	Enabled       bool                 `json:"enabled"`
	TemplateID    *string              `json:"template_id"`
}

// TemplateInput carries a template create or update.
type TemplateInput struct {
	Name      string           `json:"name" validate:"required,max=255"`
	EventType models.EventType `json:"event_type" validate:"required,oneof=due_soon overdue payment_received"`
	Subject   string           `json:"subject" validate:"required,max=512"`
	Body      string           `json:"body" validate:"required"`
}

// SettingsService owns tenant engine settings, notification rules and
// message templates. Invalid configuration is rejected here so the
// dispatcher only ever sees renderable templates.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	return &SettingsService{db: db}, nil
}

// GetEngineSettings returns the engine configuration of one agency.
func (s *SettingsService) GetEngineSettings(ctx context.Context, agencyID string) (*EngineSettingsDTO, error) {
	agency, err := s.loadAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return mapEngineSettings(*agency), nil
}

// UpdateEngineSettings validates and persists tenant engine configuration.
func (s *SettingsService) UpdateEngineSettings(ctx context.Context, agencyID string, input UpdateEngineSettingsInput) (*EngineSettingsDTO, error) {
	ctx = ensureContext(ctx)

	timezone := strings.TrimSpace(input.Timezone)
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown timezone %q", timezone))
	}
	if _, err := engine.ParseCutoff(input.OverdueCutoff); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	if input.DueSoonThresholdDays < 1 || input.DueSoonThresholdDays > 30 {
		return nil, apperrors.NewBadRequest("due_soon_threshold_days must be between 1 and 30")
	}

	agency, err := s.loadAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"timezone":                timezone,
		"overdue_cutoff":          strings.TrimSpace(input.OverdueCutoff),
		"due_soon_threshold_days": input.DueSoonThresholdDays,
	}
	if err := s.db.WithContext(ctx).Model(agency).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("settings service: update engine settings: %w", err)
	}

	return mapEngineSettings(*agency), nil
}

// ListRules returns the full rule matrix of an agency, materialising missing
// (recipient, event) pairs as disabled rows first.
func (s *SettingsService) ListRules(ctx context.Context, agencyID string) ([]models.NotificationRule, error) {
	ctx = ensureContext(ctx)
	if _, err := s.loadAgency(ctx, agencyID); err != nil {
		return nil, err
	}

	if err := database.EnsureRuleMatrix(s.db.WithContext(ctx), agencyID); err != nil {
		return nil, fmt.Errorf("settings service: ensure rule matrix: %w", err)
	}

	var rules []models.NotificationRule
	if err := s.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		Order("event_type, recipient_type").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("settings service: list rules: %w", err)
	}
	return rules, nil
}

// UpsertRule enables or disables one (recipient, event) pair, optionally
// binding a custom template. The referenced template must belong to the
// agency and target the same event type.
func (s *SettingsService) UpsertRule(ctx context.Context, agencyID string, input UpsertRuleInput) (*models.NotificationRule, error) {
	ctx = ensureContext(ctx)
	if !input.RecipientType.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown recipient type %q", input.RecipientType))
	}
	if !input.EventType.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown event type %q", input.EventType))
	}
	if _, err := s.loadAgency(ctx, agencyID); err != nil {
		return nil, err
	}

	if input.TemplateID != nil {
		var tmpl models.MessageTemplate
		err := s.db.WithContext(ctx).
			Where("id = ? AND agency_id = ?", *input.TemplateID, agencyID).
			First(&tmpl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("template_id references a template this agency does not own")
		}
		if err != nil {
			return nil, fmt.Errorf("settings service: load template: %w", err)
		}
		if tmpl.EventType != input.EventType {
			return nil, apperrors.NewBadRequest(fmt.Sprintf(
				"template %q targets event %s, not %s", tmpl.Name, tmpl.EventType, input.EventType))
		}
	}

	rule := models.NotificationRule{
		AgencyID:      agencyID,
		RecipientType: input.RecipientType,
		EventType:     input.EventType,
		Enabled:       input.Enabled,
		TemplateID:    input.TemplateID,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agency_id"}, {Name: "recipient_type"}, {Name: "event_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "template_id"}),
		}).
		Create(&rule).Error
	if err != nil {
		return nil, fmt.Errorf("settings service: upsert rule: %w", err)
	}

	var stored models.NotificationRule
	err = s.db.WithContext(ctx).
		Where("agency_id = ? AND recipient_type = ? AND event_type = ?", agencyID, input.RecipientType, input.EventType).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("settings service: reload rule: %w", err)
	}
	return &stored, nil
}

// ListTemplates returns the agency's message templates.
func (s *SettingsService) ListTemplates(ctx context.Context, agencyID string) ([]models.MessageTemplate, error) {
	ctx = ensureContext(ctx)
	var templates []models.MessageTemplate
	if err := s.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		Order("created_at DESC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("settings service: list templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate validates, sanitizes and stores a new template. Templates
// are created inactive; Activate flips them live after re-validation.
func (s *SettingsService) CreateTemplate(ctx context.Context, agencyID string, input TemplateInput) (*models.MessageTemplate, error) {
	ctx = ensureContext(ctx)
	if _, err := s.loadAgency(ctx, agencyID); err != nil {
		return nil, err
	}

	prepared, err := prepareTemplate(input)
	if err != nil {
		return nil, err
	}

	tmpl := models.MessageTemplate{
		AgencyID:  agencyID,
		Name:      prepared.Name,
		EventType: prepared.EventType,
		Subject:   prepared.Subject,
		Body:      prepared.Body,
	}
	if err := s.db.WithContext(ctx).Create(&tmpl).Error; err != nil {
		return nil, fmt.Errorf("settings service: create template: %w", err)
	}
	return &tmpl, nil
}

// UpdateTemplate re-validates and stores template changes. An active
// template that no longer validates is rejected rather than deactivated.
func (s *SettingsService) UpdateTemplate(ctx context.Context, agencyID, templateID string, input TemplateInput) (*models.MessageTemplate, error) {
	ctx = ensureContext(ctx)

	tmpl, err := s.loadTemplate(ctx, agencyID, templateID)
	if err != nil {
		return nil, err
	}

	prepared, err := prepareTemplate(input)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":       prepared.Name,
		"event_type": prepared.EventType,
		"subject":    prepared.Subject,
		"body":       prepared.Body,
	}
	if err := s.db.WithContext(ctx).Model(tmpl).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("settings service: update template: %w", err)
	}
	return tmpl, nil
}

// ActivateTemplate marks a template live after a final validation pass.
func (s *SettingsService) ActivateTemplate(ctx context.Context, agencyID, templateID string) (*models.MessageTemplate, error) {
	ctx = ensureContext(ctx)

	tmpl, err := s.loadTemplate(ctx, agencyID, templateID)
	if err != nil {
		return nil, err
	}

	allowed := notify.AllowedPlaceholders(tmpl.EventType)
	if err := notify.ValidateTemplate(tmpl.Subject, tmpl.Body, allowed); err != nil {
		return nil, apperrors.NewUnprocessable(err.Error())
	}

	if err := s.db.WithContext(ctx).Model(tmpl).Update("active", true).Error; err != nil {
		return nil, fmt.Errorf("settings service: activate template: %w", err)
	}
	return tmpl, nil
}

type preparedTemplate struct {
	Name      string
	EventType models.EventType
	Subject   string
	Body      string
}

// prepareTemplate runs the save-time pipeline: event validation, placeholder
// validation on the raw input, then body sanitization.
func prepareTemplate(input TemplateInput) (preparedTemplate, error) {
	if !input.EventType.Valid() {
		return preparedTemplate{}, apperrors.NewBadRequest(fmt.Sprintf("unknown event type %q", input.EventType))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return preparedTemplate{}, apperrors.NewBadRequest("template name is required")
	}

	allowed := notify.AllowedPlaceholders(input.EventType)
	if err := notify.ValidateTemplate(input.Subject, input.Body, allowed); err != nil {
		return preparedTemplate{}, apperrors.NewUnprocessable(err.Error())
	}

	return preparedTemplate{
		Name:      name,
		EventType: input.EventType,
		Subject:   strings.TrimSpace(input.Subject),
		Body:      notify.SanitizeBody(input.Body),
	}, nil
}

func (s *SettingsService) loadAgency(ctx context.Context, agencyID string) (*models.Agency, error) {
	ctx = ensureContext(ctx)
	var agency models.Agency
	if err := s.db.WithContext(ctx).First(&agency, "id = ?", agencyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("settings service: load agency: %w", err)
	}
	return &agency, nil
}

func (s *SettingsService) loadTemplate(ctx context.Context, agencyID, templateID string) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	err := s.db.WithContext(ctx).
		Where("id = ? AND agency_id = ?", templateID, agencyID).
		First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("settings service: load template: %w", err)
	}
	return &tmpl, nil
}

func mapEngineSettings(agency models.Agency) *EngineSettingsDTO {
	return &EngineSettingsDTO{
		AgencyID:             agency.ID,
		Timezone:             agency.Timezone,
		OverdueCutoff:        agency.OverdueCutoff,
		DueSoonThresholdDays: agency.DueSoonThresholdDays,
		Active:               agency.IsActive(),
	}
}
