package models

import "time"

// Agency is a tenant: an education agency whose data and engine configuration
// are isolated from every other agency.
type Agency struct {
	BaseModel

	Name string `gorm:"type:varchar(255);not null" json:"name"`

	// Timezone is an IANA zone name; all due-date arithmetic for this
	// agency happens in this zone.
	Timezone string `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`

	// OverdueCutoff is a tenant-local wall-clock time ("17:00") after which
	// an installment due today becomes overdue.
	OverdueCutoff string `gorm:"type:varchar(5);not null;default:'17:00'" json:"overdue_cutoff"`

	// DueSoonThresholdDays is the lookahead window for due-soon reminders.
	DueSoonThresholdDays int `gorm:"not null;default:4" json:"due_soon_threshold_days"`

	// Active is a pointer for the same reason as
	// StaffMember.NotificationsEnabled: an explicit false must survive Create
	// against the true column default.
	Active *bool `gorm:"not null;default:true;index" json:"active"`
}

// IsActive reports whether the engine processes this agency. nil follows the
// column default, which is active.
func (a Agency) IsActive() bool {
	return a.Active == nil || *a.Active
}

// Location resolves the agency timezone, falling back to UTC on bad data.
func (a Agency) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}
