package models

// RecipientType classifies the stakeholder a rule targets.
type RecipientType string

const (
	RecipientStudent     RecipientType = "student"
	RecipientAgencyUser  RecipientType = "agency_user"
	RecipientInstitution RecipientType = "partner_institution"
	RecipientSalesAgent  RecipientType = "sales_agent"
)

// Valid reports whether r is a known recipient type.
func (r RecipientType) Valid() bool {
	switch r {
	case RecipientStudent, RecipientAgencyUser, RecipientInstitution, RecipientSalesAgent:
		return true
	}
	return false
}

// EventType classifies the business occurrence triggering notifications.
type EventType string

const (
	EventDueSoon         EventType = "due_soon"
	EventOverdue         EventType = "overdue"
	EventPaymentReceived EventType = "payment_received"
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventDueSoon, EventOverdue, EventPaymentReceived:
		return true
	}
	return false
}

// RecipientTypes lists every recipient class, in fan-out order.
func RecipientTypes() []RecipientType {
	return []RecipientType{RecipientStudent, RecipientAgencyUser, RecipientInstitution, RecipientSalesAgent}
}

// NotificationRule enables notifications for one (recipient, event) pair per
// agency. Written by tenant admins, read-only to the engine.
type NotificationRule struct {
	BaseModel

	AgencyID      string        `gorm:"type:uuid;not null;uniqueIndex:idx_rule_agency_recipient_event" json:"agency_id"`
	RecipientType RecipientType `gorm:"type:varchar(32);not null;uniqueIndex:idx_rule_agency_recipient_event" json:"recipient_type"`
	EventType     EventType     `gorm:"type:varchar(32);not null;uniqueIndex:idx_rule_agency_recipient_event" json:"event_type"`

	Enabled bool `gorm:"not null;default:false" json:"enabled"`

	// TemplateID selects a tenant custom template; nil means the built-in
	// default for this (recipient, event) pair.
	TemplateID *string `gorm:"type:uuid" json:"template_id"`
}
