package livekit

import (
	"fmt"
	"strings"
)

// LiveKitConfig holds LiveKit server connection configuration
type LiveKitConfig struct {
	HTTPURL     string // http(s) URL for the RoomService API
	WSURL       string // ws(s) URL participants connect to
	APIKey      string
	APISecret   string
	SIPEndpoint string // SIP domain calls are bridged to, may be empty
	AgentName   string // agent dispatched into each call room
}

// NewLiveKitConfig creates and validates a LiveKit configuration.
// When only one of the URLs is provided the other is derived by scheme swap.
func NewLiveKitConfig(httpURL, wsURL, apiKey, apiSecret, sipEndpoint, agentName string) (*LiveKitConfig, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("livekit api key and secret are required")
	}
	if httpURL == "" && wsURL == "" {
		return nil, fmt.Errorf("livekit server url is required")
	}

	if httpURL == "" {
		httpURL = swapScheme(wsURL, "ws", "http")
	}
	if wsURL == "" {
		wsURL = swapScheme(httpURL, "http", "ws")
	}

	return &LiveKitConfig{
		HTTPURL:     httpURL,
		WSURL:       wsURL,
		APIKey:      apiKey,
		APISecret:   apiSecret,
		SIPEndpoint: sipEndpoint,
		AgentName:   agentName,
	}, nil
}

func swapScheme(url, from, to string) string {
	if strings.HasPrefix(url, from+"s://") {
		return to + "s://" + strings.TrimPrefix(url, from+"s://")
	}
	if strings.HasPrefix(url, from+"://") {
		return to + "://" + strings.TrimPrefix(url, from+"://")
	}
	return url
}
