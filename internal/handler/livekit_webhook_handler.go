package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/pkg/logger"
	"github.com/livekit/protocol/livekit"
	"go.uber.org/zap"
)

// LiveKitWebhookHandler handles LiveKit server webhook events
type LiveKitWebhookHandler struct {
	service *call.Service
}

// NewLiveKitWebhookHandler creates a new LiveKit webhook handler
func NewLiveKitWebhookHandler(service *call.Service) *LiveKitWebhookHandler {
	return &LiveKitWebhookHandler{service: service}
}

// SetupLiveKitWebhookRoutes registers the LiveKit webhook route
func (h *LiveKitWebhookHandler) SetupLiveKitWebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/livekit", h.handleWebhook).Methods("POST")
}

func (h *LiveKitWebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var event livekit.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		logger.Base().Warn("livekit webhook with invalid payload", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	roomName := ""
	if event.Room != nil {
		roomName = event.Room.Name
	}
	participant := ""
	if event.Participant != nil {
		participant = event.Participant.Identity
	}

	logger.Base().Info("livekit webhook event",
		zap.String("event", event.Event),
		zap.String("room_name", roomName),
		zap.String("participant", participant),
	)

	if event.Event == "room_finished" && roomName != "" {
		if err := h.service.HandleRoomFinished(r.Context(), roomName); err != nil {
			logger.Base().Debug("room finished for untracked room",
				zap.String("room_name", roomName),
				zap.Error(err),
			)
		}
	}

	w.WriteHeader(http.StatusOK)
}
