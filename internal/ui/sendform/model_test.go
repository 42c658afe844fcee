package sendform

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/shipdesk-notify/internal/model"
)

func TestDraftMapsAudience(t *testing.T) {
	tests := []struct {
		name      string
		audience  model.Audience
		recipient string
		want      model.Draft
	}{
		{
			name:      "all users drops recipient",
			audience:  model.AudienceAll,
			recipient: "cust-9",
			want:      model.Draft{Title: "Payout", Message: "Payroll sent", Audience: model.AudienceAll},
		},
		{
			name:      "specific user keeps trimmed recipient",
			audience:  model.AudienceSpecific,
			recipient: "  cust-9 ",
			want: model.Draft{
				Title:       "Payout",
				Message:     "Payroll sent",
				Audience:    model.AudienceSpecific,
				RecipientID: "cust-9",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(80, 24)
			m.fb.title = " Payout "
			m.fb.message = "Payroll sent\n"
			m.fb.audience = tt.audience
			m.fb.recipient = tt.recipient

			assert.Equal(t, tt.want, m.Draft())
		})
	}
}

func TestStartResetsFields(t *testing.T) {
	m := New(80, 24)
	m.fb.title = "stale"
	m.fb.message = "stale"
	m.fb.audience = model.AudienceSpecific
	m.fb.recipient = "cust-1"

	m.Start()

	assert.Equal(t, model.Draft{Audience: model.AudienceAll}, m.Draft())
	assert.Contains(t, m.View(), "Send Notification")
}

func TestUpdateWithoutFormIsNoop(t *testing.T) {
	m := New(80, 24)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, m.View())
}

func TestValidateRequired(t *testing.T) {
	validate := validateRequired("Message")

	assert.EqualError(t, validate("   "), "Message is required")
	assert.NoError(t, validate("hello"))
}
