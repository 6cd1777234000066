package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type ruleUpsert struct {
	RecipientType string `json:"recipient_type" validate:"required,oneof=student agency_user partner_institution sales_agent"`
	EventType     string `json:"event_type" validate:"required,oneof=due_soon overdue payment_received"`
	Enabled       bool   `json:"enabled"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(ruleUpsert{RecipientType: "student", EventType: "overdue", Enabled: true})
	require.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(ruleUpsert{RecipientType: "nobody", EventType: ""})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "recipient_type", failures[0].Field)
	require.Equal(t, "oneof", failures[0].Tag)
	require.Equal(t, "event_type", failures[1].Field)
	require.Equal(t, "required", failures[1].Tag)
}
