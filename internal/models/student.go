package models

// Student is an enrolled student tracked by an agency.
type Student struct {
	BaseModel

	AgencyID  string `gorm:"type:uuid;not null;index" json:"agency_id"`
	FirstName string `gorm:"type:varchar(128);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(128)" json:"last_name"`

	// Email may be empty when the agency has no usable contact on file.
	Email string `gorm:"type:varchar(255)" json:"email"`

	// AgentID references the staff member assigned as this student's
	// sales agent, when any.
	AgentID *string `gorm:"type:uuid;index" json:"agent_id"`

	// InstitutionID references the partner college/branch the student is
	// enrolled with, when any.
	InstitutionID *string `gorm:"type:uuid;index" json:"institution_id"`
}

// FullName joins the name parts for display in rendered messages.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
