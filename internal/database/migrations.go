package database

import (
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Agency{},
		&models.Institution{},
		&models.StaffMember{},
		&models.Student{},
		&models.PaymentPlan{},
		&models.Installment{},
		&models.NotificationRule{},
		&models.MessageTemplate{},
		&models.DispatchRecord{},
		&models.Notification{},
	)
}

// SeedData ensures every agency carries the full notification rule matrix so
// tenant admins toggle rows rather than create them. Rules are seeded
// disabled except the operator-facing overdue alert.
func SeedData(db *gorm.DB) error {
	var agencies []models.Agency
	if err := db.Select("id").Find(&agencies).Error; err != nil {
		return err
	}

	for _, agency := range agencies {
		if err := EnsureRuleMatrix(db, agency.ID); err != nil {
			return err
		}
	}

	return nil
}

// EnsureRuleMatrix inserts any missing (recipient, event) rule rows for the
// agency without touching existing ones.
func EnsureRuleMatrix(db *gorm.DB, agencyID string) error {
	for _, recipient := range models.RecipientTypes() {
		for _, event := range []models.EventType{models.EventDueSoon, models.EventOverdue, models.EventPaymentReceived} {
			rule := models.NotificationRule{
				AgencyID:      agencyID,
				RecipientType: recipient,
				EventType:     event,
				Enabled:       recipient == models.RecipientAgencyUser && event == models.EventOverdue,
			}
			err := db.Where(models.NotificationRule{
				AgencyID:      agencyID,
				RecipientType: recipient,
				EventType:     event,
			}).Attrs(rule).FirstOrCreate(&models.NotificationRule{}).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}
