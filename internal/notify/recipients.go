package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
)

// RecipientResolver expands a recipient type into concrete addressable
// targets for one installment. Missing contacts are skipped with a logged
// reason; they never fail the pass.
type RecipientResolver struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecipientResolver constructs a RecipientResolver.
func NewRecipientResolver(db *gorm.DB, log *zap.Logger) *RecipientResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecipientResolver{db: db, log: log}
}

// Expand resolves the concrete recipients of recipientType for the
// installment's student. The result is deduplicated by address.
func (r *RecipientResolver) Expand(ctx context.Context, inst models.Installment, recipientType models.RecipientType) ([]Recipient, error) {
	student, err := r.loadStudent(ctx, inst.StudentID)
	if err != nil {
		return nil, err
	}

	var recipients []Recipient

	switch recipientType {
	case models.RecipientStudent:
		if strings.TrimSpace(student.Email) == "" {
			r.log.Warn("student has no contact address, skipping",
				zap.String("student_id", student.ID),
				zap.String("installment_id", inst.ID),
			)
			break
		}
		recipients = append(recipients, Recipient{
			Address:     student.Email,
			DisplayName: student.FullName(),
			Type:        models.RecipientStudent,
		})

	case models.RecipientAgencyUser:
		var staff []models.StaffMember
		err := r.db.WithContext(ctx).
			Where("agency_id = ? AND notifications_enabled = ?", inst.AgencyID, true).
			Find(&staff).Error
		if err != nil {
			return nil, fmt.Errorf("recipient resolver: load staff: %w", err)
		}
		for _, member := range staff {
			if strings.TrimSpace(member.Email) == "" {
				continue
			}
			recipients = append(recipients, Recipient{
				Address:     member.Email,
				DisplayName: member.Name,
				Type:        models.RecipientAgencyUser,
			})
		}

	case models.RecipientInstitution:
		if student.InstitutionID == nil {
			break
		}
		var institution models.Institution
		err := r.db.WithContext(ctx).First(&institution, "id = ?", *student.InstitutionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("student references missing institution, skipping",
				zap.String("student_id", student.ID),
				zap.String("institution_id", *student.InstitutionID),
			)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recipient resolver: load institution: %w", err)
		}
		if strings.TrimSpace(institution.ContactEmail) == "" {
			r.log.Warn("institution has no contact on file, skipping",
				zap.String("institution_id", institution.ID),
			)
			break
		}
		recipients = append(recipients, Recipient{
			Address:     institution.ContactEmail,
			DisplayName: institution.Name,
			Type:        models.RecipientInstitution,
		})

	case models.RecipientSalesAgent:
		if student.AgentID == nil {
			break
		}
		var agent models.StaffMember
		err := r.db.WithContext(ctx).First(&agent, "id = ?", *student.AgentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("student references missing sales agent, skipping",
				zap.String("student_id", student.ID),
				zap.String("agent_id", *student.AgentID),
			)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recipient resolver: load agent: %w", err)
		}
		if strings.TrimSpace(agent.Email) == "" {
			r.log.Warn("sales agent has no address, skipping", zap.String("agent_id", agent.ID))
			break
		}
		recipients = append(recipients, Recipient{
			Address:     agent.Email,
			DisplayName: agent.Name,
			Type:        models.RecipientSalesAgent,
		})

	default:
		return nil, fmt.Errorf("recipient resolver: unknown recipient type %q", recipientType)
	}

	return DeduplicateByAddress(recipients), nil
}

func (r *RecipientResolver) loadStudent(ctx context.Context, studentID string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, "id = ?", studentID).Error; err != nil {
		return models.Student{}, fmt.Errorf("recipient resolver: load student %s: %w", studentID, err)
	}
	return student, nil
}

// DeduplicateByAddress drops later recipients sharing an address with an
// earlier one, compared case-insensitively.
func DeduplicateByAddress(recipients []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(recipients))
	out := recipients[:0]
	for _, rcpt := range recipients {
		key := strings.ToLower(strings.TrimSpace(rcpt.Address))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rcpt)
	}
	return out
}
