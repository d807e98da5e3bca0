package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/pkg/redis"
)

// ErrNotFound is returned when a call or room config is not in the store
var ErrNotFound = errors.New("not found")

// Store holds live call state and room configuration while calls are in
// flight. The Redis-backed implementation survives restarts and is shared
// across instances; the memory implementation is the single-process fallback.
type Store interface {
	SaveCall(ctx context.Context, call *domain.CallState) error
	GetCall(ctx context.Context, callID string) (*domain.CallState, error)
	GetCallBySid(ctx context.Context, callSid string) (*domain.CallState, error)
	DeleteCall(ctx context.Context, callID string) error

	SaveRoomConfig(ctx context.Context, roomName string, config *domain.RoomConfig) error
	GetRoomConfig(ctx context.Context, roomName string) (*domain.RoomConfig, error)
	DeleteRoomConfig(ctx context.Context, roomName string) error
}

// callStateTTL bounds how long finished call state lingers in Redis
const callStateTTL = 24 * time.Hour

// RedisStore implements Store on top of the shared Redis service
type RedisStore struct {
	redis redis.RedisServiceInterface
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(redisSvc redis.RedisServiceInterface) *RedisStore {
	return &RedisStore{redis: redisSvc}
}

func (s *RedisStore) SaveCall(ctx context.Context, call *domain.CallState) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call state: %w", err)
	}

	key := s.redis.GenerateKey(redis.CALL_STATE, call.CallID)
	if err := s.redis.SetValue(ctx, key, string(data), callStateTTL); err != nil {
		return fmt.Errorf("failed to save call state: %w", err)
	}

	// Secondary index so provider callbacks can resolve by SID
	if call.TwilioCallSid != "" {
		sidKey := s.redis.GenerateKey(redis.CALL_SID, call.TwilioCallSid)
		if err := s.redis.SetValue(ctx, sidKey, call.CallID, callStateTTL); err != nil {
			return fmt.Errorf("failed to index call sid: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) GetCall(ctx context.Context, callID string) (*domain.CallState, error) {
	key := s.redis.GenerateKey(redis.CALL_STATE, callID)
	val, err := s.redis.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call state: %w", err)
	}

	var call domain.CallState
	if err := json.Unmarshal([]byte(val), &call); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call state: %w", err)
	}
	return &call, nil
}

func (s *RedisStore) GetCallBySid(ctx context.Context, callSid string) (*domain.CallState, error) {
	sidKey := s.redis.GenerateKey(redis.CALL_SID, callSid)
	callID, err := s.redis.GetValue(ctx, sidKey)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve call sid: %w", err)
	}
	return s.GetCall(ctx, callID)
}

func (s *RedisStore) DeleteCall(ctx context.Context, callID string) error {
	call, err := s.GetCall(ctx, callID)
	if err == nil && call.TwilioCallSid != "" {
		sidKey := s.redis.GenerateKey(redis.CALL_SID, call.TwilioCallSid)
		_ = s.redis.DelValue(ctx, sidKey)
	}
	key := s.redis.GenerateKey(redis.CALL_STATE, callID)
	return s.redis.DelValue(ctx, key)
}

func (s *RedisStore) SaveRoomConfig(ctx context.Context, roomName string, config *domain.RoomConfig) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal room config: %w", err)
	}
	key := s.redis.GenerateKey(redis.ROOM_CONFIG, roomName)
	return s.redis.SetValue(ctx, key, string(data), callStateTTL)
}

func (s *RedisStore) GetRoomConfig(ctx context.Context, roomName string) (*domain.RoomConfig, error) {
	key := s.redis.GenerateKey(redis.ROOM_CONFIG, roomName)
	val, err := s.redis.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room config: %w", err)
	}

	var config domain.RoomConfig
	if err := json.Unmarshal([]byte(val), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room config: %w", err)
	}
	return &config, nil
}

func (s *RedisStore) DeleteRoomConfig(ctx context.Context, roomName string) error {
	key := s.redis.GenerateKey(redis.ROOM_CONFIG, roomName)
	return s.redis.DelValue(ctx, key)
}
