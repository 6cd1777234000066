package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app bell-feed entry, created once per real status
// transition and mutated only via the read flag.
type Notification struct {
	BaseModel

	AgencyID string  `gorm:"type:uuid;not null;index" json:"agency_id"`
	StaffID  *string `gorm:"type:uuid;index" json:"staff_id"`

	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	ActionURL string         `gorm:"type:text" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
