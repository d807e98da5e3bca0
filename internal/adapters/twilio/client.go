package twilio

import (
	"fmt"
	"strings"

	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Config holds Twilio credentials and the caller number
type Config struct {
	AccountSid string
	AuthToken  string
	FromNumber string
}

// Client places outbound calls through the Twilio REST API
type Client struct {
	rest *twilio.RestClient
	from string
}

// NewClient creates a Twilio client. Returns nil when credentials are not
// configured; callers treat a nil client as dialing disabled.
func NewClient(cfg *Config) *Client {
	if cfg == nil || cfg.AccountSid == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSid,
		Password: cfg.AuthToken,
	})

	return &Client{
		rest: rest,
		from: cfg.FromNumber,
	}
}

// statusCallbackEvents are the provider events forwarded to the status webhook
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// PlaceCall dials the number and returns the provider call SID. The answer
// URL serves TwiML when the callee picks up; status updates go to statusURL.
func (c *Client) PlaceCall(to, answerURL, statusURL string) (string, error) {
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetUrl(answerURL)
	params.SetMethod("POST")
	params.SetStatusCallback(statusURL)
	params.SetStatusCallbackEvent(statusCallbackEvents)
	params.SetStatusCallbackMethod("POST")

	resp, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to create call: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}

	logger.Base().Info("outbound call placed",
		zap.String("to", to),
		zap.String("call_sid", sid),
	)
	return sid, nil
}

// CleanNumber normalizes a dialable number to E.164: whitespace, dashes and
// parentheses are stripped and a leading + is ensured.
func CleanNumber(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return cleaned
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// statusMap translates the provider status vocabulary into ours
var statusMap = map[string]domain.CallStatus{
	"queued":      domain.CallStatusQueued,
	"initiated":   domain.CallStatusQueued,
	"ringing":     domain.CallStatusRinging,
	"in-progress": domain.CallStatusConnected,
	"completed":   domain.CallStatusCompleted,
	"busy":        domain.CallStatusBusy,
	"failed":      domain.CallStatusFailed,
	"no-answer":   domain.CallStatusNoAnswer,
	"canceled":    domain.CallStatusCancelled,
}

// MapCallStatus maps a provider call status to the internal vocabulary.
// Unknown values pass through unchanged so new provider states stay visible.
func MapCallStatus(providerStatus string) domain.CallStatus {
	if mapped, ok := statusMap[strings.ToLower(providerStatus)]; ok {
		return mapped
	}
	return domain.CallStatus(providerStatus)
}
