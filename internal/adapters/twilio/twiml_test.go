package twilio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAnswerTwiMLBridgesToSIP(t *testing.T) {
	doc, err := BuildAnswerTwiML("call_abc12345", "sip.example.com")
	require.NoError(t, err)

	assert.Contains(t, doc, "<Dial>")
	assert.Contains(t, doc, "sip:call_abc12345@sip.example.com")
}

func TestBuildAnswerTwiMLWithoutEndpoint(t *testing.T) {
	doc, err := BuildAnswerTwiML("call_abc12345", "")
	require.NoError(t, err)

	assert.NotContains(t, doc, "<Dial>")
	assert.Contains(t, doc, "<Say>")
}

func TestBuildSIPURI(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"sip.example.com", "sip:call_x@sip.example.com"},
		{"sip:sip.example.com", "sip:call_x@sip.example.com"},
		{"@sip.example.com", "sip:call_x@sip.example.com"},
		{" sip.example.com ", "sip:call_x@sip.example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, buildSIPURI("call_x", tt.endpoint))
	}
}
