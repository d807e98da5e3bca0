package state

import (
	"context"
	"sync"

	"github.com/karthivk/Callcenter/internal/domain"
)

// MemoryStore is the in-process fallback when Redis is not configured.
// State is lost on restart, which is acceptable for a single-instance demo.
type MemoryStore struct {
	mu      sync.RWMutex
	calls   map[string]*domain.CallState
	bySid   map[string]string
	rooms   map[string]*domain.RoomConfig
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls: make(map[string]*domain.CallState),
		bySid: make(map[string]string),
		rooms: make(map[string]*domain.RoomConfig),
	}
}

func (s *MemoryStore) SaveCall(ctx context.Context, call *domain.CallState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *call
	s.calls[call.CallID] = &copied
	if call.TwilioCallSid != "" {
		s.bySid[call.TwilioCallSid] = call.CallID
	}
	return nil
}

func (s *MemoryStore) GetCall(ctx context.Context, callID string) (*domain.CallState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *call
	return &copied, nil
}

func (s *MemoryStore) GetCallBySid(ctx context.Context, callSid string) (*domain.CallState, error) {
	s.mu.RLock()
	callID, ok := s.bySid[callSid]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetCall(ctx, callID)
}

func (s *MemoryStore) DeleteCall(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call, ok := s.calls[callID]; ok && call.TwilioCallSid != "" {
		delete(s.bySid, call.TwilioCallSid)
	}
	delete(s.calls, callID)
	return nil
}

func (s *MemoryStore) SaveRoomConfig(ctx context.Context, roomName string, config *domain.RoomConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *config
	s.rooms[roomName] = &copied
	return nil
}

func (s *MemoryStore) GetRoomConfig(ctx context.Context, roomName string) (*domain.RoomConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.rooms[roomName]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *config
	return &copied, nil
}

func (s *MemoryStore) DeleteRoomConfig(ctx context.Context, roomName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomName)
	return nil
}
