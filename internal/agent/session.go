package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	agentgemini "github.com/karthivk/Callcenter/internal/agent/gemini"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/pkg/logger"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
	"layeh.com/gopus"
)

const greeting = `Greet the caller by saying: "Hello, this is an AI assistant calling you. How can I help you today?"`

// voiceForLanguage picks the prebuilt voice for a language code
func voiceForLanguage(language string) string {
	switch language {
	case "es-ES":
		return "Charon"
	case "en-US", "ta-IN", "hi-IN":
		return "Leda"
	default:
		return "Leda"
	}
}

// buildInstructions composes the system instruction from the room config
func buildInstructions(cfg *domain.RoomConfig) string {
	languageName := cfg.LanguageName
	if languageName == "" {
		languageName = "English"
	}
	return fmt.Sprintf(
		"You are a helpful assistant speaking in %s. %s Keep responses concise and natural for phone conversations. Speak clearly and avoid long monologues.",
		languageName, cfg.Prompt,
	)
}

// Session bridges one call room to a Gemini Live conversation
type Session struct {
	roomName string
	cfg      *config.AgentConfig

	room  *lksdk.Room
	gem   *agentgemini.Client
	track *lksdk.LocalSampleTrack

	greetOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	onDone    func()
}

// StartSession joins the room with the given access token and starts the
// audio bridge. metadata is the room metadata JSON; when it is empty or
// unparseable the config is fetched from the call API, then falls back to
// defaults.
func StartSession(ctx context.Context, cfg *config.AgentConfig, roomName, metadata, token string, onDone func()) (*Session, error) {
	roomConfig := resolveRoomConfig(ctx, cfg, roomName, metadata)

	s := &Session{
		roomName: roomName,
		cfg:      cfg,
		done:     make(chan struct{}),
		onDone:   onDone,
	}

	gem, err := agentgemini.Dial(ctx, &agentgemini.Config{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		WSURL:             cfg.GeminiWSURL,
		Voice:             voiceForLanguage(roomConfig.Language),
		SystemInstruction: buildInstructions(roomConfig),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start model session: %w", err)
	}
	s.gem = gem

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: roomSampleRate,
		Channels:  channels,
	})
	if err != nil {
		gem.Close()
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	s.track = track

	callback := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: s.onTrackSubscribed,
		},
		OnParticipantConnected:    s.onParticipantConnected,
		OnParticipantDisconnected: s.onParticipantDisconnected,
		OnDisconnected:            s.onRoomDisconnected,
	}

	room, err := lksdk.ConnectToRoomWithToken(cfg.LiveKitWSURL, token, callback)
	if err != nil {
		gem.Close()
		return nil, fmt.Errorf("failed to join room %s: %w", roomName, err)
	}
	s.room = room

	if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name: "agent-audio",
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to publish audio track: %w", err)
	}

	go s.pumpModelAudio()

	logger.Base().Info("agent session started",
		zap.String("room_name", roomName),
		zap.String("call_id", roomConfig.CallID),
		zap.String("language", roomConfig.Language),
	)
	return s, nil
}

// Done is closed when the session has ended
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears down the room connection and model session
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.room != nil {
			s.room.Disconnect()
		}
		if s.gem != nil {
			s.gem.Close()
		}
		logger.Base().Info("agent session closed", zap.String("room_name", s.roomName))
		if s.onDone != nil {
			s.onDone()
		}
	})
}

func (s *Session) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	logger.Base().Info("participant joined",
		zap.String("room_name", s.roomName),
		zap.String("identity", rp.Identity()),
	)
	s.greet()
}

func (s *Session) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	logger.Base().Info("participant left, ending session",
		zap.String("room_name", s.roomName),
		zap.String("identity", rp.Identity()),
	)
	s.Close()
}

func (s *Session) onRoomDisconnected() {
	s.Close()
}

func (s *Session) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	logger.Base().Info("subscribed to caller audio",
		zap.String("room_name", s.roomName),
		zap.String("identity", rp.Identity()),
	)
	s.greet()
	go s.pumpCallerAudio(track)
}

// greet sends the opening turn exactly once per session
func (s *Session) greet() {
	s.greetOnce.Do(func() {
		if err := s.gem.SendText(greeting); err != nil {
			logger.Base().Warn("failed to send greeting", zap.String("room_name", s.roomName), zap.Error(err))
		}
	})
}

// pumpCallerAudio decodes the caller's Opus track and streams it to the model
func (s *Session) pumpCallerAudio(track *webrtc.TrackRemote) {
	decoder, err := gopus.NewDecoder(roomSampleRate, channels)
	if err != nil {
		logger.Base().Error("failed to create opus decoder", zap.Error(err))
		return
	}

	for {
		select {
		case <-s.done:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Base().Debug("caller audio track ended", zap.String("room_name", s.roomName), zap.Error(err))
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		pcm, err := decoder.Decode(pkt.Payload, frameSamples, false)
		if err != nil {
			continue
		}

		if err := s.gem.SendAudio(pcmToBytes(downsample48to16(pcm))); err != nil {
			logger.Base().Debug("failed to forward caller audio", zap.Error(err))
			return
		}
	}
}

// pumpModelAudio encodes model speech into 20ms Opus frames on the published
// track. An interruption flushes whatever is still buffered.
func (s *Session) pumpModelAudio() {
	encoder, err := gopus.NewEncoder(roomSampleRate, channels, gopus.Audio)
	if err != nil {
		logger.Base().Error("failed to create opus encoder", zap.Error(err))
		s.Close()
		return
	}

	var buffered []int16

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.gem.Events():
			if !ok {
				s.Close()
				return
			}

			if ev.Interrupted {
				buffered = buffered[:0]
				continue
			}
			if len(ev.Audio) == 0 {
				continue
			}

			buffered = append(buffered, upsample24to48(bytesToPCM(ev.Audio))...)
			for len(buffered) >= frameSamples {
				frame := buffered[:frameSamples]
				buffered = buffered[frameSamples:]

				data, err := encoder.Encode(frame, frameSamples, 4000)
				if err != nil {
					continue
				}
				if err := s.track.WriteSample(media.Sample{
					Data:     data,
					Duration: 20 * time.Millisecond,
				}, nil); err != nil {
					logger.Base().Debug("failed to write agent audio", zap.Error(err))
				}
			}
		}
	}
}

// resolveRoomConfig parses the room metadata, falling back to the call API
// and then to defaults.
func resolveRoomConfig(ctx context.Context, cfg *config.AgentConfig, roomName, metadata string) *domain.RoomConfig {
	var roomConfig domain.RoomConfig
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &roomConfig); err == nil && roomConfig.Prompt != "" {
			return &roomConfig
		}
	}

	if cfg.APIBaseURL != "" {
		if fetched := fetchRoomConfig(ctx, cfg.APIBaseURL, roomName); fetched != nil {
			return fetched
		}
	}

	logger.Base().Warn("no room config found, using defaults", zap.String("room_name", roomName))
	return &domain.RoomConfig{
		Language:     "en-US",
		LanguageName: "English",
		Prompt:       "You are making a friendly check-in call.",
	}
}

// fetchRoomConfig asks the call server for the room configuration
func fetchRoomConfig(ctx context.Context, baseURL, roomName string) *domain.RoomConfig {
	endpoint := fmt.Sprintf("%s/call/config?room_name=%s",
		strings.TrimSuffix(baseURL, "/"), url.QueryEscape(roomName))

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Base().Debug("room config fetch failed", zap.String("room_name", roomName), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body call.RoomConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success {
		return nil
	}

	return &domain.RoomConfig{
		CallID:       body.CallID,
		Phone:        body.Phone,
		Language:     body.Language,
		LanguageName: body.LanguageName,
		Prompt:       body.Prompt,
	}
}
