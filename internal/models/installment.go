package models

import (
	"fmt"
	"time"
)

// InstallmentStatus enumerates the installment lifecycle states.
type InstallmentStatus string

const (
	StatusDraft     InstallmentStatus = "draft"
	StatusPending   InstallmentStatus = "pending"
	StatusOverdue   InstallmentStatus = "overdue"
	StatusPartial   InstallmentStatus = "partial"
	StatusPaid      InstallmentStatus = "paid"
	StatusCancelled InstallmentStatus = "cancelled"
)

// Valid reports whether s is a known installment status.
func (s InstallmentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusOverdue, StatusPartial, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Installment is a single scheduled payment within a plan. Status is mutated
// only by payment recording (external) or the engine's transition applier.
// "Due soon" is never stored; it is derived at evaluation time.
type Installment struct {
	BaseModel

	AgencyID  string `gorm:"type:uuid;not null;index" json:"agency_id"`
	PlanID    string `gorm:"type:uuid;not null;index" json:"plan_id"`
	StudentID string `gorm:"type:uuid;not null;index" json:"student_id"`

	AmountCents int64 `gorm:"not null" json:"amount_cents"`

	// DueDate is a calendar date; the time component is ignored.
	DueDate time.Time `gorm:"type:date;not null;index" json:"due_date"`

	Status InstallmentStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Cycle distinguishes lifecycle occurrences. The payment collaborator
	// increments it when a settled installment is reopened, so a fresh
	// overdue cycle notifies again despite the dedup ledger.
	Cycle int `gorm:"not null;default:1" json:"cycle"`

	OverdueAt *time.Time `json:"overdue_at"`

	// Last-notified stamps per event type, informational only; dedup is
	// enforced by the dispatch ledger, not by these.
	DueSoonNotifiedAt *time.Time `json:"due_soon_notified_at"`
	OverdueNotifiedAt *time.Time `json:"overdue_notified_at"`
}

// EventKey identifies one lifecycle occurrence of this installment for
// dedup purposes.
func (i Installment) EventKey() string {
	return fmt.Sprintf("installment:%s:cycle:%d", i.ID, i.Cycle)
}
