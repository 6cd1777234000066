package models

// PaymentPlan groups the installments agreed for one student.
type PaymentPlan struct {
	BaseModel

	AgencyID  string `gorm:"type:uuid;not null;index" json:"agency_id"`
	StudentID string `gorm:"type:uuid;not null;index" json:"student_id"`
	Currency  string `gorm:"type:varchar(3);not null;default:'AUD'" json:"currency"`
}
