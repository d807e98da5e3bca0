package twilio

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

// BuildAnswerTwiML builds the TwiML served when the callee answers: a short
// announcement followed by a SIP dial that bridges the call into the room.
// Without a SIP endpoint the call gets a spoken fallback instead.
func BuildAnswerTwiML(roomName, sipEndpoint string) (string, error) {
	if sipEndpoint == "" {
		return BuildSayTwiML("You are connected. The audio bridge is not configured on this server, goodbye.")
	}

	sipURI := buildSIPURI(roomName, sipEndpoint)

	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: "Connecting you now."},
		&twiml.VoiceDial{
			InnerElements: []twiml.Element{
				&twiml.VoiceSip{SipUrl: sipURI},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build answer twiml: %w", err)
	}
	return doc, nil
}

// BuildSayTwiML builds a speech-only TwiML response
func BuildSayTwiML(message string) (string, error) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: message},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build say twiml: %w", err)
	}
	return doc, nil
}

// buildSIPURI forms sip:<room>@<endpoint> from a configured endpoint that may
// carry a sip: scheme or a leading @ already.
func buildSIPURI(roomName, sipEndpoint string) string {
	endpoint := strings.TrimSpace(sipEndpoint)
	endpoint = strings.TrimPrefix(endpoint, "sip:")
	endpoint = strings.TrimPrefix(endpoint, "@")
	return fmt.Sprintf("sip:%s@%s", roomName, endpoint)
}
