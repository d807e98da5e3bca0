package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// CallHandler serves the call initiation, status and config endpoints
type CallHandler struct {
	service *call.Service
}

// NewCallHandler creates a new call handler
func NewCallHandler(service *call.Service) *CallHandler {
	return &CallHandler{service: service}
}

// SetupCallRoutes registers the call API routes
func (h *CallHandler) SetupCallRoutes(router *mux.Router) {
	router.HandleFunc("/call/initiate", h.handleInitiateCall).Methods("POST")
	router.HandleFunc("/call/status", h.handleCallStatus).Methods("GET")
	router.HandleFunc("/call/config", h.handleRoomConfig).Methods("GET")
	router.HandleFunc("/call/recent", h.handleRecentCalls).Methods("GET")
}

// handleInitiateCall handles POST /call/initiate
func (h *CallHandler) handleInitiateCall(w http.ResponseWriter, r *http.Request) {
	var req call.InitiateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &call.InitiateCallResponse{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	resp, err := h.service.InitiateCall(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, call.ErrMissingFields):
			writeJSON(w, http.StatusBadRequest, &call.InitiateCallResponse{
				Success: false,
				Error:   err.Error(),
			})
		case errors.Is(err, call.ErrRateLimited):
			writeJSON(w, http.StatusTooManyRequests, &call.InitiateCallResponse{
				Success: false,
				Error:   "too many call requests, try again shortly",
			})
		default:
			logger.Base().Error("call initiation failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, &call.InitiateCallResponse{
				Success: false,
				Error:   "internal error",
			})
		}
		return
	}

	status := http.StatusOK
	if !resp.Success {
		// Downstream failures surface as success:false with an error string
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// handleCallStatus handles GET /call/status?call_id=
func (h *CallHandler) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	if callID == "" {
		writeJSON(w, http.StatusBadRequest, &call.CallStatusResponse{
			Success: false,
			Error:   "call_id required",
		})
		return
	}

	callState, err := h.service.GetCallStatus(r.Context(), callID)
	if err != nil {
		if errors.Is(err, call.ErrCallNotFound) {
			writeJSON(w, http.StatusNotFound, &call.CallStatusResponse{
				Success: false,
				Error:   "Call not found",
			})
			return
		}
		logger.Base().Error("call status lookup failed", zap.String("call_id", callID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, &call.CallStatusResponse{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, &call.CallStatusResponse{
		Success:       true,
		CallID:        callState.CallID,
		Status:        string(callState.Status),
		Phone:         callState.Phone,
		RoomName:      callState.RoomName,
		TwilioCallSid: callState.TwilioCallSid,
	})
}

// handleRoomConfig handles GET /call/config?room_name=
func (h *CallHandler) handleRoomConfig(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room_name")
	if roomName == "" {
		writeJSON(w, http.StatusBadRequest, &call.RoomConfigResponse{
			Success: false,
			Error:   "room_name required",
		})
		return
	}

	config, err := h.service.GetRoomConfig(r.Context(), roomName)
	if err != nil {
		if errors.Is(err, call.ErrCallNotFound) {
			writeJSON(w, http.StatusNotFound, &call.RoomConfigResponse{
				Success: false,
				Error:   "Room not found",
			})
			return
		}
		logger.Base().Error("room config lookup failed", zap.String("room_name", roomName), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, &call.RoomConfigResponse{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, &call.RoomConfigResponse{
		Success:      true,
		RoomName:     roomName,
		CallID:       config.CallID,
		Phone:        config.Phone,
		Language:     config.Language,
		LanguageName: config.LanguageName,
		Prompt:       config.Prompt,
	})
}

// handleRecentCalls handles GET /call/recent?limit=
func (h *CallHandler) handleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, &call.RecentCallsResponse{
				Success: false,
				Error:   "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentCalls(r.Context(), limit)
	if err != nil {
		if errors.Is(err, call.ErrAuditDisabled) {
			writeJSON(w, http.StatusNotImplemented, &call.RecentCallsResponse{
				Success: false,
				Error:   "call history not available",
			})
			return
		}
		logger.Base().Error("recent calls lookup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, &call.RecentCallsResponse{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, &call.RecentCallsResponse{
		Success: true,
		Calls:   records,
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Error("failed to encode response", zap.Error(err))
	}
}
