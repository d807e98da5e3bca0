package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/adapters/livekit"
	twilioadapter "github.com/karthivk/Callcenter/internal/adapters/twilio"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/repository"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/internal/state"
	"github.com/karthivk/Callcenter/pkg/logger"
	"github.com/karthivk/Callcenter/pkg/pubsub"
	"github.com/karthivk/Callcenter/pkg/redis"
	"go.uber.org/zap"
)

const (
	serviceName    = "callcenter"
	serviceVersion = "1.0.0"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config      *config.ServerConfig
	service     *call.Service
	roomManager *livekit.RoomManager
	repoManager repository.RepositoryManager
	events      *pubsub.Service
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.ServerConfig) (*HandlerManager, error) {
	// LiveKit room manager
	livekitConfig, err := livekit.NewLiveKitConfig(
		cfg.LiveKitHTTPURL,
		cfg.LiveKitWSURL,
		cfg.LiveKitAPIKey,
		cfg.LiveKitAPISecret,
		cfg.LiveKitSIPEndpoint,
		cfg.AgentName,
	)
	if err != nil {
		return nil, err
	}
	roomManager, err := livekit.NewRoomManager(livekitConfig)
	if err != nil {
		return nil, err
	}

	// State store: Redis when configured, in-memory fallback otherwise
	var store state.Store
	if cfg.RedisHost != "" {
		redisConfig := &redis.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       0,
		}
		redisSvc, err := redis.NewRedisService(redisConfig)
		if err != nil {
			logger.Base().Warn("failed to initialize redis, falling back to in-memory state", zap.Error(err))
			store = state.NewMemoryStore()
		} else {
			store = state.NewRedisStore(redisSvc)
			logger.Base().Info("redis state store initialized",
				zap.String("host", cfg.RedisHost),
				zap.String("port", cfg.RedisPort),
			)
		}
	} else {
		store = state.NewMemoryStore()
		logger.Base().Info("using in-memory state store")
	}

	// Optional call audit database
	var repoManager repository.RepositoryManager
	var callRepo repository.CallRepository
	if repository.IsConfigured() {
		repoManager, err = repository.NewRepositoryManager()
		if err != nil {
			logger.Base().Warn("failed to connect to database, running without audit trail", zap.Error(err))
		} else {
			callRepo = repoManager.Call()
			logger.Base().Info("call audit database initialized")
		}
	}

	// Optional Pub/Sub lifecycle events
	var events *pubsub.Service
	var publisher call.EventPublisher
	if cfg.GCPProjectID != "" && cfg.PubSubTopic != "" {
		events, err = pubsub.NewService(context.Background(), &pubsub.PubSubConfig{
			ProjectID: cfg.GCPProjectID,
			TopicName: cfg.PubSubTopic,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize pubsub, running without lifecycle events", zap.Error(err))
		} else {
			publisher = events
			logger.Base().Info("pubsub lifecycle events enabled", zap.String("topic", cfg.PubSubTopic))
		}
	}

	// Outbound dialer; nil when credentials are absent
	var dialer call.Dialer
	if cfg.TwilioConfigured() {
		dialer = twilioadapter.NewClient(&twilioadapter.Config{
			AccountSid: cfg.TwilioAccountSid,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioPhoneNumber,
		})
	} else {
		logger.Base().Warn("twilio not configured, calls will stop at room creation")
	}

	service := call.NewService(cfg, roomManager, dialer, store, callRepo, publisher)

	return &HandlerManager{
		config:      cfg,
		service:     service,
		roomManager: roomManager,
		repoManager: repoManager,
		events:      events,
	}, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	// Apply global middleware
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	callHandler := NewCallHandler(hm.service)
	callHandler.SetupCallRoutes(router)

	twilioHandler := NewTwilioWebhookHandler(hm.service)
	twilioHandler.SetupTwilioWebhookRoutes(router)

	msg91Handler := NewMSG91WebhookHandler(hm.service, hm.config.MSG91AuthKey)
	msg91Handler.SetupMSG91WebhookRoutes(router)

	livekitHandler := NewLiveKitWebhookHandler(hm.service)
	livekitHandler.SetupLiveKitWebhookRoutes(router)

	healthHandler := NewHealthHandler(serviceName, serviceVersion, hm.repoManager)
	healthHandler.SetupHealthRoutes(router)

	hm.setupStaticRoutes(router)

	logger.Base().Info("all application routes registered")
}

// setupStaticRoutes registers static assets and the form page. The form page
// goes behind the API key middleware when SECRET_KEY is set.
func (hm *HandlerManager) setupStaticRoutes(router *mux.Router) {
	staticHandler := NewStaticHandler("static")
	staticHandler.SetupStaticAssetsOnly(router)

	if hm.config.SecretKey != "" {
		router.HandleFunc("/", APIKeyMiddleware(hm.config.SecretKey)(http.HandlerFunc(staticHandler.serveCallForm)).ServeHTTP).Methods("GET")
		logger.Base().Info("call form protected with api key middleware")
	} else {
		router.HandleFunc("/", staticHandler.serveCallForm).Methods("GET")
		logger.Base().Info("call form registered without api key (development mode)")
	}
}

// GetService returns the call service
func (hm *HandlerManager) GetService() *call.Service {
	return hm.service
}

// Close releases handler-owned resources
func (hm *HandlerManager) Close() {
	hm.service.Shutdown()
	if hm.events != nil {
		if err := hm.events.Close(); err != nil {
			logger.Base().Warn("failed to close pubsub service", zap.Error(err))
		}
	}
	if hm.repoManager != nil {
		if err := hm.repoManager.Close(); err != nil {
			logger.Base().Warn("failed to close database", zap.Error(err))
		}
	}
}
