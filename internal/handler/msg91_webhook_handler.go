package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// msg91Callback is the status payload posted by the MSG91 voice gateway
type msg91Callback struct {
	CallID  string `json:"call_id"`
	CallSid string `json:"call_sid"`
	Status  string `json:"status"`
}

// MSG91WebhookHandler handles MSG91 voice status callbacks. Like the Twilio
// handler it always answers 200 so the gateway does not retry.
type MSG91WebhookHandler struct {
	service *call.Service
	authKey string
}

// NewMSG91WebhookHandler creates a new MSG91 webhook handler
func NewMSG91WebhookHandler(service *call.Service, authKey string) *MSG91WebhookHandler {
	return &MSG91WebhookHandler{service: service, authKey: authKey}
}

// SetupMSG91WebhookRoutes registers the MSG91 webhook route
func (h *MSG91WebhookHandler) SetupMSG91WebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/msg91", h.handleCallback).Methods("POST")
}

func (h *MSG91WebhookHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.authKey != "" && r.Header.Get("authkey") != h.authKey {
		logger.Base().Warn("msg91 webhook with bad auth key",
			zap.String("remote_addr", r.RemoteAddr),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload msg91Callback
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Base().Warn("msg91 webhook with invalid payload", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	logger.Base().Info("msg91 status webhook",
		zap.String("call_id", payload.CallID),
		zap.String("call_sid", payload.CallSid),
		zap.String("status", payload.Status),
	)

	if payload.Status == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var err error
	switch {
	case payload.CallID != "":
		err = h.service.HandleProviderStatusByID(r.Context(), payload.CallID, payload.Status)
	case payload.CallSid != "":
		err = h.service.HandleProviderStatus(r.Context(), payload.CallSid, payload.Status)
	}
	if err != nil {
		logger.Base().Warn("msg91 webhook for unknown call",
			zap.String("call_id", payload.CallID),
			zap.String("call_sid", payload.CallSid),
			zap.Error(err),
		)
	}

	w.WriteHeader(http.StatusOK)
}
