package domain

import (
	"time"
)

// CallStatus is the lifecycle status of an outbound call. The vocabulary is
// open: provider callbacks may surface values beyond the ones listed here.
type CallStatus string

const (
	CallStatusInitiating  CallStatus = "initiating"
	CallStatusRoomCreated CallStatus = "room_created"
	CallStatusQueued      CallStatus = "queued"
	CallStatusRinging     CallStatus = "ringing"
	CallStatusAnswered    CallStatus = "answered"
	CallStatusConnected   CallStatus = "connected"
	CallStatusCompleted   CallStatus = "completed"
	CallStatusFailed      CallStatus = "failed"
	CallStatusCancelled   CallStatus = "cancelled"
	CallStatusEnded       CallStatus = "ended"
	CallStatusBusy        CallStatus = "busy"
	CallStatusNoAnswer    CallStatus = "no-answer"
)

var terminalStatuses = map[CallStatus]bool{
	CallStatusCompleted: true,
	CallStatusFailed:    true,
	CallStatusCancelled: true,
	CallStatusEnded:     true,
	CallStatusBusy:      true,
	CallStatusNoAnswer:  true,
}

// IsTerminal reports whether the status ends the call lifecycle.
func (s CallStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// CallState is the live state of a call, kept in the state store while the
// call is in flight and polled by the browser.
type CallState struct {
	CallID        string     `json:"call_id"`
	Phone         string     `json:"phone"`
	Language      string     `json:"language"`
	LanguageName  string     `json:"language_name"`
	Prompt        string     `json:"prompt"`
	RoomName      string     `json:"room_name"`
	TwilioCallSid string     `json:"twilio_call_sid,omitempty"`
	Status        CallStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RoomConfig is the per-room configuration the agent reads to run the
// conversation. It mirrors the JSON stored in the LiveKit room metadata.
type RoomConfig struct {
	CallID       string `json:"call_id"`
	Phone        string `json:"phone"`
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	Prompt       string `json:"prompt"`
}

// CallRecord is the persistent audit row for a call
type CallRecord struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CallID        string     `gorm:"column:call_id;type:varchar(64);uniqueIndex;not null" json:"call_id"`
	Phone         string     `gorm:"column:phone;type:varchar(32);not null" json:"phone"`
	Language      string     `gorm:"column:language;type:varchar(16)" json:"language"`
	LanguageName  string     `gorm:"column:language_name;type:varchar(64)" json:"language_name"`
	Prompt        string     `gorm:"column:prompt;type:text" json:"prompt"`
	RoomName      string     `gorm:"column:room_name;type:varchar(64);index" json:"room_name"`
	TwilioCallSid string     `gorm:"column:twilio_call_sid;type:varchar(64);index" json:"twilio_call_sid"`
	Status        string     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	EndedAt       *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for CallRecord
func (CallRecord) TableName() string {
	return "calls"
}
