package notify

import "github.com/studypay/duebell/internal/models"

// AllowedPlaceholders lists the placeholder names a template may reference
// for the given event type. Validation at save time rejects anything else.
func AllowedPlaceholders(eventType models.EventType) []string {
	base := []string{
		"student_name",
		"recipient_name",
		"agency_name",
		"amount",
		"currency",
		"due_date",
	}
	switch eventType {
	case models.EventDueSoon:
		return append(base, "days_until_due")
	case models.EventPaymentReceived:
		return append(base, "paid_date")
	default:
		return base
	}
}

type templateKey struct {
	recipient models.RecipientType
	event     models.EventType
}

var defaultSubjects = map[models.EventType]string{
	models.EventDueSoon:         "Payment reminder: {{amount}} due {{due_date}}",
	models.EventOverdue:         "Overdue payment: {{amount}} was due {{due_date}}",
	models.EventPaymentReceived: "Payment received: {{amount}}",
}

var defaultBodies = map[templateKey]string{
	{models.RecipientStudent, models.EventDueSoon}: "<p>Hi {{recipient_name}},</p>" +
		"<p>A payment of <strong>{{amount}}</strong> for your study plan with {{agency_name}} is due on {{due_date}} ({{days_until_due}} days from now).</p>" +
		"<p>Please make sure funds are available before the due date.</p>",
	{models.RecipientStudent, models.EventOverdue}: "<p>Hi {{recipient_name}},</p>" +
		"<p>Your payment of <strong>{{amount}}</strong> to {{agency_name}} was due on {{due_date}} and is now overdue.</p>" +
		"<p>Please arrange payment as soon as possible to keep your enrolment active.</p>",
	{models.RecipientStudent, models.EventPaymentReceived}: "<p>Hi {{recipient_name}},</p>" +
		"<p>We received your payment of <strong>{{amount}}</strong> on {{paid_date}}. Thank you.</p>",
}

var defaultStaffBodies = map[models.EventType]string{
	models.EventDueSoon: "<p>Hi {{recipient_name}},</p>" +
		"<p>{{student_name}} has an installment of <strong>{{amount}}</strong> due on {{due_date}} ({{days_until_due}} days from now).</p>",
	models.EventOverdue: "<p>Hi {{recipient_name}},</p>" +
		"<p>{{student_name}}'s installment of <strong>{{amount}}</strong> was due on {{due_date}} and is now overdue.</p>",
	models.EventPaymentReceived: "<p>Hi {{recipient_name}},</p>" +
		"<p>{{student_name}} paid <strong>{{amount}}</strong> on {{paid_date}}.</p>",
}

// DefaultTemplate returns the built-in template for a (recipient, event)
// pair. Students get a first-person message; every other recipient type gets
// the staff-facing variant.
func DefaultTemplate(recipient models.RecipientType, eventType models.EventType) models.MessageTemplate {
	subject := defaultSubjects[eventType]

	body, ok := defaultBodies[templateKey{recipient, eventType}]
	if !ok {
		body = defaultStaffBodies[eventType]
	}

	return models.MessageTemplate{
		Name:      "default",
		EventType: eventType,
		Subject:   subject,
		Body:      body,
		Active:    true,
	}
}
