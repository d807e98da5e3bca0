package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// TwilioWebhookHandler handles Twilio answer and status callbacks.
// Twilio expects a 200 with TwiML (or an empty body) on every callback;
// returning 5xx makes the provider retry or drop the call, so failures are
// logged and answered with a spoken apology instead.
type TwilioWebhookHandler struct {
	service *call.Service
}

// NewTwilioWebhookHandler creates a new Twilio webhook handler
func NewTwilioWebhookHandler(service *call.Service) *TwilioWebhookHandler {
	return &TwilioWebhookHandler{service: service}
}

// SetupTwilioWebhookRoutes registers the Twilio webhook routes
func (h *TwilioWebhookHandler) SetupTwilioWebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/twilio/answer", h.handleAnswer).Methods("POST", "GET")
	router.HandleFunc("/webhook/twilio/status", h.handleStatus).Methods("POST")
}

// handleAnswer serves TwiML when the callee picks up
func (h *TwilioWebhookHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	roomName := r.URL.Query().Get("room_name")
	callSid := r.FormValue("CallSid")

	logger.Base().Info("twilio answer webhook",
		zap.String("call_id", callID),
		zap.String("room_name", roomName),
		zap.String("call_sid", callSid),
	)

	doc, err := h.service.HandleAnswer(r.Context(), callID, roomName, callSid)
	if err != nil {
		logger.Base().Error("failed to build answer twiml",
			zap.String("call_id", callID),
			zap.Error(err),
		)
		doc = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>Sorry, we could not connect your call. Goodbye.</Say></Response>`
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// handleStatus applies Twilio call status callbacks
func (h *TwilioWebhookHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	callSid := r.FormValue("CallSid")
	callStatus := r.FormValue("CallStatus")

	logger.Base().Info("twilio status webhook",
		zap.String("call_sid", callSid),
		zap.String("call_status", callStatus),
	)

	if callSid != "" && callStatus != "" {
		if err := h.service.HandleProviderStatus(r.Context(), callSid, callStatus); err != nil {
			logger.Base().Warn("status webhook for unknown call",
				zap.String("call_sid", callSid),
				zap.Error(err),
			)
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
}
