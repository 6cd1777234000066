package models

// StaffMember is an agency employee eligible for notification fan-out.
type StaffMember struct {
	BaseModel

	AgencyID string `gorm:"type:uuid;not null;index" json:"agency_id"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Email    string `gorm:"type:varchar(255);not null" json:"email"`

	// NotificationsEnabled gates the agency_user recipient type for this member.
	// Pointer so an explicit false survives Create: gorm omits zero-value
	// fields on insert, which would let the column default overwrite opt-outs.
	NotificationsEnabled *bool `gorm:"not null;default:true" json:"notifications_enabled"`
}

// NotificationsOn reports whether the member receives agency_user fan-out.
// nil means the column default applies, which is enabled.
func (m StaffMember) NotificationsOn() bool {
	return m.NotificationsEnabled == nil || *m.NotificationsEnabled
}

// Bool returns a pointer to v, for boolean columns with database defaults.
func Bool(v bool) *bool { return &v }
