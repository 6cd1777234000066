package models

// MessageTemplate is a tenant-owned subject/body pair with {{placeholder}}
// markers. Body content is sanitized on save and the template can only be
// activated once every placeholder validates against the allowed set for
// its event type.
type MessageTemplate struct {
	BaseModel

	AgencyID  string    `gorm:"type:uuid;not null;index" json:"agency_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	EventType EventType `gorm:"type:varchar(32);not null;index" json:"event_type"`

	Subject string `gorm:"type:varchar(512);not null" json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`

	Active bool `gorm:"not null;default:false" json:"active"`
}
