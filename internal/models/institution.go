package models

// Institution is a partner college or branch with a contact on file.
type Institution struct {
	BaseModel

	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	ContactEmail string `gorm:"type:varchar(255)" json:"contact_email"`
}
