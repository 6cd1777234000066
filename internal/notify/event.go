package notify

import (
	"time"

	"github.com/studypay/duebell/internal/models"
)

// Event is one business occurrence eligible for notification fan-out. Key
// identifies the occurrence (installment lifecycle cycle included) and is the
// dedup scope together with event type and recipient address.
type Event struct {
	Key           string
	Type          models.EventType
	AgencyID      string
	InstallmentID string
	OccurredAt    time.Time
}

// Recipient is a concrete addressable notification target.
type Recipient struct {
	Address     string
	DisplayName string
	Type        models.RecipientType
}

// Rendered is a subject/body pair ready for transport.
type Rendered struct {
	Subject string
	Body    string
}
