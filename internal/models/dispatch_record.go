package models

// DeliveryStatus is the final (or in-flight) state of one dispatch attempt set.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DispatchRecord is the dedup ledger: one row per (event occurrence, event
// type, recipient address). The composite unique index is the serialization
// point that keeps concurrent or repeated passes from double-sending; rows
// are append-only except for recording the final delivery status.
type DispatchRecord struct {
	BaseModel

	AgencyID      string `gorm:"type:uuid;not null;index" json:"agency_id"`
	InstallmentID string `gorm:"type:uuid;index" json:"installment_id"`

	EventKey         string        `gorm:"type:varchar(128);not null;uniqueIndex:idx_dispatch_dedup" json:"event_key"`
	EventType        EventType     `gorm:"type:varchar(32);not null;uniqueIndex:idx_dispatch_dedup" json:"event_type"`
	RecipientAddress string        `gorm:"type:varchar(255);not null;uniqueIndex:idx_dispatch_dedup" json:"recipient_address"`
	RecipientType    RecipientType `gorm:"type:varchar(32);not null" json:"recipient_type"`

	Status            DeliveryStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Attempts          int            `gorm:"not null;default:0" json:"attempts"`
	ProviderMessageID string         `gorm:"type:varchar(255)" json:"provider_message_id"`
	ErrorMessage      string         `gorm:"type:text" json:"error_message"`
}
