package call

import "github.com/karthivk/Callcenter/internal/domain"

// InitiateCallRequest is the body of POST /call/initiate
type InitiateCallRequest struct {
	PhoneNumber  string `json:"phone_number"`
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	Prompt       string `json:"prompt"`
}

// InitiateCallResponse is the result of a call initiation attempt
type InitiateCallResponse struct {
	Success       bool   `json:"success"`
	CallID        string `json:"call_id,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	TwilioCallSid string `json:"twilio_call_sid,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CallStatusResponse is the result of GET /call/status
type CallStatusResponse struct {
	Success       bool   `json:"success"`
	CallID        string `json:"call_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Phone         string `json:"phone,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	TwilioCallSid string `json:"twilio_call_sid,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RecentCallsResponse is the result of GET /call/recent
type RecentCallsResponse struct {
	Success bool                 `json:"success"`
	Calls   []*domain.CallRecord `json:"calls,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// RoomConfigResponse is the result of GET /call/config
type RoomConfigResponse struct {
	Success      bool   `json:"success"`
	RoomName     string `json:"room_name,omitempty"`
	CallID       string `json:"call_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Language     string `json:"language,omitempty"`
	LanguageName string `json:"language_name,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Error        string `json:"error,omitempty"`
}
