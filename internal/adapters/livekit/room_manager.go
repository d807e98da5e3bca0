package livekit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/pkg/logger"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"go.uber.org/zap"
)

const (
	// CallRoomPrefix marks rooms created for outbound calls
	CallRoomPrefix = "call_"

	roomNameAttempts = 10
)

// RoomManager wraps the LiveKit RoomService API for call rooms
type RoomManager struct {
	config     *LiveKitConfig
	roomClient *lksdk.RoomServiceClient
}

// NewRoomManager creates a room manager connected to the configured server
func NewRoomManager(config *LiveKitConfig) (*RoomManager, error) {
	if config == nil {
		return nil, fmt.Errorf("livekit config is required")
	}

	roomClient := lksdk.NewRoomServiceClient(config.HTTPURL, config.APIKey, config.APISecret)

	return &RoomManager{
		config:     config,
		roomClient: roomClient,
	}, nil
}

// GenerateRoomName produces a unique room name of the form call_<8 hex>.
// Existing rooms are checked to avoid collisions; after repeated collisions a
// longer suffix is used.
func (rm *RoomManager) GenerateRoomName(ctx context.Context) (string, error) {
	existing, err := rm.listRoomNames(ctx)
	if err != nil {
		// Listing can fail while the server still accepts creates. An 8 hex
		// suffix collision is unlikely enough to proceed.
		logger.Base().Warn("failed to list rooms for collision check", zap.Error(err))
		existing = map[string]bool{}
	}

	for i := 0; i < roomNameAttempts; i++ {
		name := CallRoomPrefix + randomHex(8)
		if !existing[name] {
			return name, nil
		}
	}

	return CallRoomPrefix + randomHex(16), nil
}

// CreateCallRoom creates the room for a call with agent dispatch and the call
// configuration embedded as JSON metadata.
func (rm *RoomManager) CreateCallRoom(ctx context.Context, roomName string, config *domain.RoomConfig) error {
	metadata, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal room metadata: %w", err)
	}

	req := &livekit.CreateRoomRequest{
		Name:     roomName,
		Metadata: string(metadata),
	}
	if rm.config.AgentName != "" {
		req.Agents = []*livekit.RoomAgentDispatch{
			{AgentName: rm.config.AgentName},
		}
	}

	room, err := rm.roomClient.CreateRoom(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", roomName, err)
	}

	logger.Base().Info("call room created",
		zap.String("room_name", room.Name),
		zap.String("call_id", config.CallID),
	)

	// Some deployments drop metadata on create. Re-apply it, best effort.
	if _, err := rm.roomClient.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     roomName,
		Metadata: string(metadata),
	}); err != nil {
		logger.Base().Warn("failed to update room metadata",
			zap.String("room_name", roomName),
			zap.Error(err),
		)
	}

	return nil
}

// DeleteRoom removes a room, disconnecting any remaining participants
func (rm *RoomManager) DeleteRoom(ctx context.Context, roomName string) error {
	_, err := rm.roomClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: roomName})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomName, err)
	}
	return nil
}

// ListCallRooms returns the active rooms created for calls, keyed by room
// name, with their metadata.
func (rm *RoomManager) ListCallRooms(ctx context.Context) (map[string]string, error) {
	resp, err := rm.roomClient.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make(map[string]string)
	for _, room := range resp.Rooms {
		if strings.HasPrefix(room.Name, CallRoomPrefix) {
			rooms[room.Name] = room.Metadata
		}
	}
	return rooms, nil
}

// GenerateToken creates an access token for a participant to join a room
func (rm *RoomManager) GenerateToken(roomName, identity string, validFor time.Duration) (string, error) {
	canPublish := true
	canSubscribe := true

	at := auth.NewAccessToken(rm.config.APIKey, rm.config.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(validFor)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, nil
}

func (rm *RoomManager) listRoomNames(ctx context.Context) (map[string]bool, error) {
	resp, err := rm.roomClient.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(resp.Rooms))
	for _, room := range resp.Rooms {
		names[room.Name] = true
	}
	return names, nil
}

// randomHex returns n hex characters derived from a fresh UUID
func randomHex(n int) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return hex[:n]
}
