package twilio

import (
	"testing"

	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	assert.Nil(t, NewClient(nil))
	assert.Nil(t, NewClient(&Config{}))
	assert.Nil(t, NewClient(&Config{AccountSid: "AC123", AuthToken: "token"}))
	assert.NotNil(t, NewClient(&Config{AccountSid: "AC123", AuthToken: "token", FromNumber: "+15550001111"}))
}

func TestCleanNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already e164", "+14155550100", "+14155550100"},
		{"missing plus", "14155550100", "+14155550100"},
		{"spaces and dashes", " +1 415-555-0100 ", "+14155550100"},
		{"parentheses", "+1 (415) 555.0100", "+14155550100"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanNumber(tt.input))
		})
	}
}

func TestMapCallStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     domain.CallStatus
	}{
		{"queued", domain.CallStatusQueued},
		{"initiated", domain.CallStatusQueued},
		{"ringing", domain.CallStatusRinging},
		{"in-progress", domain.CallStatusConnected},
		{"completed", domain.CallStatusCompleted},
		{"busy", domain.CallStatusBusy},
		{"failed", domain.CallStatusFailed},
		{"no-answer", domain.CallStatusNoAnswer},
		{"canceled", domain.CallStatusCancelled},
		{"RINGING", domain.CallStatusRinging},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapCallStatus(tt.provider), "provider status %s", tt.provider)
	}

	// Unknown statuses pass through unchanged
	assert.Equal(t, domain.CallStatus("mystery"), MapCallStatus("mystery"))
}
