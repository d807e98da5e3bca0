package agent

import (
	"context"
	"sync"
	"time"

	"github.com/karthivk/Callcenter/internal/adapters/livekit"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// sessionTokenTTL bounds how long a minted room token stays valid
const sessionTokenTTL = 2 * time.Hour

// Worker discovers call rooms and runs one agent session per room. Discovery
// polls the room list; rooms carry their call configuration as metadata.
type Worker struct {
	cfg   *config.AgentConfig
	rooms *livekit.RoomManager

	mu     sync.Mutex
	active map[string]*Session
}

// NewWorker creates an agent worker
func NewWorker(cfg *config.AgentConfig) (*Worker, error) {
	livekitConfig, err := livekit.NewLiveKitConfig(
		cfg.LiveKitHTTPURL,
		cfg.LiveKitWSURL,
		cfg.LiveKitAPIKey,
		cfg.LiveKitAPISecret,
		"",
		cfg.AgentName,
	)
	if err != nil {
		return nil, err
	}

	roomManager, err := livekit.NewRoomManager(livekitConfig)
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:    cfg,
		rooms:  roomManager,
		active: make(map[string]*Session),
	}, nil
}

// Run polls for call rooms until the context is cancelled, then closes all
// running sessions.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	logger.Base().Info("agent worker started",
		zap.String("agent_name", w.cfg.AgentName),
		zap.Duration("poll_interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			logger.Base().Info("agent worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll joins any call room that does not have a session yet
func (w *Worker) poll(ctx context.Context) {
	rooms, err := w.rooms.ListCallRooms(ctx)
	if err != nil {
		logger.Base().Warn("failed to list call rooms", zap.Error(err))
		return
	}

	for roomName, metadata := range rooms {
		w.mu.Lock()
		_, running := w.active[roomName]
		w.mu.Unlock()
		if running {
			continue
		}

		name := roomName
		token, err := w.rooms.GenerateToken(name, w.cfg.AgentName, sessionTokenTTL)
		if err != nil {
			logger.Base().Error("failed to mint room token",
				zap.String("room_name", name),
				zap.Error(err),
			)
			continue
		}

		session, err := StartSession(ctx, w.cfg, name, metadata, token, func() {
			w.mu.Lock()
			delete(w.active, name)
			w.mu.Unlock()
		})
		if err != nil {
			logger.Base().Error("failed to start session",
				zap.String("room_name", name),
				zap.Error(err),
			)
			continue
		}

		w.mu.Lock()
		w.active[name] = session
		w.mu.Unlock()
	}
}

func (w *Worker) closeAll() {
	w.mu.Lock()
	sessions := make([]*Session, 0, len(w.active))
	for _, s := range w.active {
		sessions = append(sessions, s)
	}
	w.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
