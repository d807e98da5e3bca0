package call

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	twilioadapter "github.com/karthivk/Callcenter/internal/adapters/twilio"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/internal/repository"
	"github.com/karthivk/Callcenter/internal/state"
	"github.com/karthivk/Callcenter/pkg/logger"
	"github.com/karthivk/Callcenter/pkg/pubsub"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when call initiation exceeds the configured rate
var ErrRateLimited = errors.New("too many call requests")

// ErrCallNotFound is returned when a call ID or SID cannot be resolved
var ErrCallNotFound = errors.New("call not found")

// ErrMissingFields is returned when a call request lacks required fields
var ErrMissingFields = errors.New("phone_number and prompt required")

// ErrAuditDisabled is returned for history queries when no database is configured
var ErrAuditDisabled = errors.New("call audit database not configured")

// RoomAPI is the slice of the LiveKit room manager the service needs
type RoomAPI interface {
	GenerateRoomName(ctx context.Context) (string, error)
	CreateCallRoom(ctx context.Context, roomName string, config *domain.RoomConfig) error
	DeleteRoom(ctx context.Context, roomName string) error
}

// Dialer places outbound telephony calls
type Dialer interface {
	PlaceCall(to, answerURL, statusURL string) (string, error)
}

// EventPublisher publishes call lifecycle events
type EventPublisher interface {
	PublishCallEvent(ctx context.Context, event *pubsub.CallEvent) error
}

// Service orchestrates the outbound call lifecycle: room creation, dialing,
// state transitions from provider callbacks, and cleanup.
type Service struct {
	cfg    *config.ServerConfig
	rooms  RoomAPI
	dialer Dialer // nil when Twilio is not configured
	store  state.Store
	repo   repository.CallRepository // nil when no database is configured
	events EventPublisher            // nil when Pub/Sub is not configured

	limiter *rate.Limiter

	mu        sync.Mutex
	watchdogs map[string]context.CancelFunc
}

// NewService creates the call service. dialer, repo and events may be nil.
func NewService(cfg *config.ServerConfig, rooms RoomAPI, dialer Dialer, store state.Store, repo repository.CallRepository, events EventPublisher) *Service {
	rps := cfg.InitiateRPS
	if rps <= 0 {
		rps = 5
	}

	return &Service{
		cfg:       cfg,
		rooms:     rooms,
		dialer:    dialer,
		store:     store,
		repo:      repo,
		events:    events,
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		watchdogs: make(map[string]context.CancelFunc),
	}
}

// InitiateCall creates the call room and places the outbound call.
// Every submission places a new call; there is no idempotency key.
func (s *Service) InitiateCall(ctx context.Context, req *InitiateCallRequest) (*InitiateCallResponse, error) {
	if req.PhoneNumber == "" || req.Prompt == "" {
		return nil, ErrMissingFields
	}

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	// The state keeps the number exactly as submitted; only the dial leg gets
	// the normalized E.164 form.
	callID := uuid.New().String()
	phone := req.PhoneNumber
	dialNumber := twilioadapter.CleanNumber(req.PhoneNumber)

	roomName, err := s.rooms.GenerateRoomName(ctx)
	if err != nil {
		return &InitiateCallResponse{
			Success: false,
			CallID:  callID,
			Error:   fmt.Sprintf("failed to allocate room: %v", err),
		}, nil
	}

	now := time.Now().UTC()
	callState := &domain.CallState{
		CallID:       callID,
		Phone:        phone,
		Language:     req.Language,
		LanguageName: req.LanguageName,
		Prompt:       req.Prompt,
		RoomName:     roomName,
		Status:       domain.CallStatusInitiating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	roomConfig := &domain.RoomConfig{
		CallID:       callID,
		Phone:        phone,
		Language:     req.Language,
		LanguageName: req.LanguageName,
		Prompt:       req.Prompt,
	}

	if err := s.store.SaveCall(ctx, callState); err != nil {
		return &InitiateCallResponse{
			Success: false,
			CallID:  callID,
			Error:   fmt.Sprintf("failed to save call state: %v", err),
		}, nil
	}
	if err := s.store.SaveRoomConfig(ctx, roomName, roomConfig); err != nil {
		logger.Base().Warn("failed to save room config",
			zap.String("room_name", roomName),
			zap.Error(err),
		)
	}

	if s.repo != nil {
		record := &domain.CallRecord{
			CallID:       callID,
			Phone:        phone,
			Language:     req.Language,
			LanguageName: req.LanguageName,
			Prompt:       req.Prompt,
			RoomName:     roomName,
			Status:       string(domain.CallStatusInitiating),
		}
		if err := s.repo.Create(ctx, record); err != nil {
			logger.Base().Warn("failed to create call record", zap.String("call_id", callID), zap.Error(err))
		}
	}

	if err := s.rooms.CreateCallRoom(ctx, roomName, roomConfig); err != nil {
		s.transition(ctx, callState, domain.CallStatusFailed)
		return &InitiateCallResponse{
			Success: false,
			CallID:  callID,
			Error:   fmt.Sprintf("failed to create room: %v", err),
		}, nil
	}

	s.publishEvent(ctx, "call.initiated", callState)

	// Without dialing credentials the room still exists and the form reports
	// success, matching the demo's bring-your-own-trunk setup.
	if s.dialer == nil {
		s.transition(ctx, callState, domain.CallStatusRoomCreated)
		return &InitiateCallResponse{
			Success:  true,
			CallID:   callID,
			RoomName: roomName,
			Status:   string(domain.CallStatusRoomCreated),
			Message:  "Room created, outbound dialing not configured",
		}, nil
	}

	answerURL := fmt.Sprintf("%s/webhook/twilio/answer?call_id=%s&room_name=%s",
		s.cfg.APIBaseURL, url.QueryEscape(callID), url.QueryEscape(roomName))
	statusURL := fmt.Sprintf("%s/webhook/twilio/status", s.cfg.APIBaseURL)

	callSid, err := s.dialer.PlaceCall(dialNumber, answerURL, statusURL)
	if err != nil {
		s.transition(ctx, callState, domain.CallStatusFailed)
		return &InitiateCallResponse{
			Success: false,
			CallID:  callID,
			Error:   fmt.Sprintf("failed to place call: %v", err),
		}, nil
	}

	callState.TwilioCallSid = callSid
	if s.repo != nil {
		if err := s.repo.UpdateCallSid(ctx, callID, callSid); err != nil {
			logger.Base().Warn("failed to record call sid", zap.String("call_id", callID), zap.Error(err))
		}
	}
	s.transition(ctx, callState, domain.CallStatusQueued)
	s.startWatchdog(callID)

	return &InitiateCallResponse{
		Success:       true,
		CallID:        callID,
		RoomName:      roomName,
		TwilioCallSid: callSid,
		Status:        string(domain.CallStatusQueued),
		Message:       "Call initiated successfully",
	}, nil
}

// GetCallStatus returns the live state for a call ID. When the state store no
// longer has the call, the audit database answers for it so finished calls
// stay queryable.
func (s *Service) GetCallStatus(ctx context.Context, callID string) (*domain.CallState, error) {
	callState, err := s.store.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			if recorded := s.statusFromAudit(ctx, callID); recorded != nil {
				return recorded, nil
			}
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return callState, nil
}

// statusFromAudit rebuilds a call state from its audit record, nil on miss
func (s *Service) statusFromAudit(ctx context.Context, callID string) *domain.CallState {
	if s.repo == nil {
		return nil
	}

	record, err := s.repo.GetByCallID(ctx, callID)
	if err != nil {
		return nil
	}

	return &domain.CallState{
		CallID:        record.CallID,
		Phone:         record.Phone,
		Language:      record.Language,
		LanguageName:  record.LanguageName,
		Prompt:        record.Prompt,
		RoomName:      record.RoomName,
		TwilioCallSid: record.TwilioCallSid,
		Status:        domain.CallStatus(record.Status),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

// RecentCalls returns the latest audit records, newest first
func (s *Service) RecentCalls(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	if s.repo == nil {
		return nil, ErrAuditDisabled
	}
	return s.repo.ListRecent(ctx, limit)
}

// GetRoomConfig returns the agent-facing configuration for a room
func (s *Service) GetRoomConfig(ctx context.Context, roomName string) (*domain.RoomConfig, error) {
	config, err := s.store.GetRoomConfig(ctx, roomName)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return config, nil
}

// HandleAnswer marks the call answered and returns the TwiML that bridges the
// callee into the room over SIP.
func (s *Service) HandleAnswer(ctx context.Context, callID, roomName, callSid string) (string, error) {
	callState, err := s.store.GetCall(ctx, callID)
	if err == nil {
		if callSid != "" && callState.TwilioCallSid == "" {
			callState.TwilioCallSid = callSid
		}
		s.transition(ctx, callState, domain.CallStatusAnswered)
	} else {
		logger.Base().Warn("answer webhook for unknown call",
			zap.String("call_id", callID),
			zap.String("room_name", roomName),
		)
	}

	return twilioadapter.BuildAnswerTwiML(roomName, s.cfg.LiveKitSIPEndpoint)
}

// HandleProviderStatus applies a Twilio status callback, resolving the call
// by provider SID.
func (s *Service) HandleProviderStatus(ctx context.Context, callSid, providerStatus string) error {
	callState, err := s.store.GetCallBySid(ctx, callSid)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrCallNotFound
		}
		return err
	}

	s.transition(ctx, callState, twilioadapter.MapCallStatus(providerStatus))
	return nil
}

// HandleProviderStatusByID applies a provider status callback addressed by
// call ID rather than SID.
func (s *Service) HandleProviderStatusByID(ctx context.Context, callID, providerStatus string) error {
	callState, err := s.store.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrCallNotFound
		}
		return err
	}

	s.transition(ctx, callState, twilioadapter.MapCallStatus(providerStatus))
	return nil
}

// HandleRoomFinished marks the call ended when its LiveKit room closes
func (s *Service) HandleRoomFinished(ctx context.Context, roomName string) error {
	roomConfig, err := s.store.GetRoomConfig(ctx, roomName)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrCallNotFound
		}
		return err
	}

	callState, err := s.store.GetCall(ctx, roomConfig.CallID)
	if err != nil {
		return err
	}

	if !callState.Status.IsTerminal() {
		s.transition(ctx, callState, domain.CallStatusEnded)
	}
	return nil
}

// Shutdown cancels all running watchdogs
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for callID, cancel := range s.watchdogs {
		cancel()
		delete(s.watchdogs, callID)
	}
}

// transition moves a call to a new status and runs the terminal cleanup when
// the lifecycle ends.
func (s *Service) transition(ctx context.Context, callState *domain.CallState, status domain.CallStatus) {
	callState.Status = status
	callState.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveCall(ctx, callState); err != nil {
		logger.Base().Error("failed to save call state",
			zap.String("call_id", callState.CallID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}

	if s.repo != nil {
		var err error
		if status.IsTerminal() {
			err = s.repo.MarkEnded(ctx, callState.CallID, string(status))
		} else {
			err = s.repo.UpdateStatus(ctx, callState.CallID, string(status))
		}
		if err != nil {
			logger.Base().Warn("failed to update call record",
				zap.String("call_id", callState.CallID),
				zap.Error(err),
			)
		}
	}

	logger.Base().Info("call status changed",
		zap.String("call_id", callState.CallID),
		zap.String("status", string(status)),
	)
	s.publishEvent(ctx, "call.status", callState)

	if status.IsTerminal() {
		s.cancelWatchdog(callState.CallID)
		s.cleanupRoom(callState.RoomName)
	}
}

// cleanupRoom deletes the room and its stored config, best effort
func (s *Service) cleanupRoom(roomName string) {
	if roomName == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.rooms.DeleteRoom(ctx, roomName); err != nil {
		logger.Base().Debug("room cleanup skipped", zap.String("room_name", roomName), zap.Error(err))
	}
	if err := s.store.DeleteRoomConfig(ctx, roomName); err != nil {
		logger.Base().Debug("room config cleanup skipped", zap.String("room_name", roomName), zap.Error(err))
	}
}

// startWatchdog bounds the call setup: if no terminal status arrives within
// the configured timeout the call is failed and its room torn down.
func (s *Service) startWatchdog(callID string) {
	timeout := s.cfg.CallSetupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.watchdogs[callID] = cancel
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		delete(s.watchdogs, callID)
		s.mu.Unlock()

		logger.Base().Warn("call setup timed out",
			zap.String("call_id", callID),
			zap.Duration("timeout", timeout),
		)

		wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer wcancel()

		callState, err := s.store.GetCall(wctx, callID)
		if err != nil || callState.Status.IsTerminal() {
			return
		}
		s.transition(wctx, callState, domain.CallStatusFailed)
	}()
}

func (s *Service) cancelWatchdog(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.watchdogs[callID]; ok {
		cancel()
		delete(s.watchdogs, callID)
	}
}

func (s *Service) publishEvent(ctx context.Context, eventType string, callState *domain.CallState) {
	if s.events == nil {
		return
	}

	event := &pubsub.CallEvent{
		EventType: eventType,
		CallID:    callState.CallID,
		RoomName:  callState.RoomName,
		Phone:     callState.Phone,
		Status:    string(callState.Status),
		CallSid:   callState.TwilioCallSid,
	}
	if err := s.events.PublishCallEvent(ctx, event); err != nil {
		logger.Base().Warn("failed to publish call event",
			zap.String("call_id", callState.CallID),
			zap.Error(err),
		)
	}
}
