package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the Gemini Live session configuration
type Config struct {
	APIKey            string
	Model             string
	WSURL             string
	Voice             string
	SystemInstruction string
}

// Event is a single server event from the live session. Audio carries raw
// 24kHz mono PCM16 when present.
type Event struct {
	Audio        []byte
	Interrupted  bool
	TurnComplete bool
}

// Client is a Gemini Live (BidiGenerateContent) WebSocket session
type Client struct {
	conn    *websocket.Conn
	events  chan Event
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

const (
	inputMimeType    = "audio/pcm;rate=16000"
	setupWaitTimeout = 15 * time.Second
)

// Client -> server message shapes

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// Server -> client message shape

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn"`
	TurnComplete bool       `json:"turnComplete"`
	Interrupted  bool       `json:"interrupted"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts"`
}

type serverPart struct {
	InlineData *inlineData `json:"inlineData"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Dial opens the live session, sends the setup message and waits for the
// server's setup acknowledgement before returning.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	url := fmt.Sprintf("%s?key=%s", cfg.WSURL, cfg.APIKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gemini live: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	setup := setupMessage{
		Setup: setupPayload{
			Model: cfg.Model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: cfg.Voice},
					},
				},
			},
		},
	}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &content{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}

	if err := c.writeJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	if err := c.awaitSetupComplete(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// SendAudio streams a chunk of 16kHz mono PCM16 caller audio to the model
func (c *Client) SendAudio(pcm []byte) error {
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{
					MimeType: inputMimeType,
					Data:     base64.StdEncoding.EncodeToString(pcm),
				},
			},
		},
	}
	return c.writeJSON(msg)
}

// SendText sends a complete user text turn, prompting a spoken reply
func (c *Client) SendText(text string) error {
	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns: []content{
				{
					Role:  "user",
					Parts: []part{{Text: text}},
				},
			},
			TurnComplete: true,
		},
	}
	return c.writeJSON(msg)
}

// Events returns the stream of server events. The channel closes when the
// session ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the session ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close terminates the session
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) awaitSetupComplete() error {
	deadline := time.Now().Add(setupWaitTimeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed waiting for setup complete: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Base().Debug("gemini session read ended", zap.Error(err))
				c.Close()
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Base().Debug("unparseable gemini message", zap.Error(err))
			continue
		}
		if msg.ServerContent == nil {
			continue
		}

		if msg.ServerContent.Interrupted {
			c.deliver(Event{Interrupted: true})
		}
		if msg.ServerContent.ModelTurn != nil {
			for _, p := range msg.ServerContent.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					continue
				}
				c.deliver(Event{Audio: audio})
			}
		}
		if msg.ServerContent.TurnComplete {
			c.deliver(Event{TurnComplete: true})
		}
	}
}

// deliver drops events instead of blocking when the consumer falls behind
func (c *Client) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		logger.Base().Debug("gemini event dropped, consumer behind")
	}
}
