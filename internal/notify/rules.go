package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
)

// ResolvedRule pairs an enabled recipient type with the template to render.
type ResolvedRule struct {
	RecipientType models.RecipientType
	Template      models.MessageTemplate
	Custom        bool
}

// RuleResolver looks up which recipient types are enabled for an event and
// which template each should use. Rules are owned by tenant admins; the
// resolver reads them only.
type RuleResolver struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRuleResolver constructs a RuleResolver.
func NewRuleResolver(db *gorm.DB, log *zap.Logger) *RuleResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RuleResolver{db: db, log: log}
}

// Resolve returns one entry per enabled (recipient, event) rule for the
// agency. A tenant custom template is used when it exists, is active, and
// matches the event type; otherwise the built-in default applies. Zero
// enabled rules yields an empty slice and no error.
func (r *RuleResolver) Resolve(ctx context.Context, agencyID string, eventType models.EventType) ([]ResolvedRule, error) {
	var rules []models.NotificationRule
	err := r.db.WithContext(ctx).
		Where("agency_id = ? AND event_type = ? AND enabled = ?", agencyID, eventType, true).
		Order("recipient_type").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("rule resolver: load rules: %w", err)
	}

	resolved := make([]ResolvedRule, 0, len(rules))
	for _, rule := range rules {
		entry := ResolvedRule{
			RecipientType: rule.RecipientType,
			Template:      DefaultTemplate(rule.RecipientType, eventType),
		}

		if rule.TemplateID != nil {
			var tmpl models.MessageTemplate
			err := r.db.WithContext(ctx).
				Where("id = ? AND agency_id = ?", *rule.TemplateID, agencyID).
				First(&tmpl).Error
			switch {
			case err == nil && tmpl.Active && tmpl.EventType == eventType:
				entry.Template = tmpl
				entry.Custom = true
			case err == nil:
				r.log.Warn("custom template unusable, falling back to default",
					zap.String("agency_id", agencyID),
					zap.String("template_id", tmpl.ID),
					zap.Bool("active", tmpl.Active),
					zap.String("template_event", string(tmpl.EventType)),
					zap.String("rule_event", string(eventType)),
				)
			case errors.Is(err, gorm.ErrRecordNotFound):
				r.log.Warn("rule references missing template, falling back to default",
					zap.String("agency_id", agencyID),
					zap.String("template_id", *rule.TemplateID),
				)
			default:
				return nil, fmt.Errorf("rule resolver: load template: %w", err)
			}
		}

		resolved = append(resolved, entry)
	}

	return resolved, nil
}
