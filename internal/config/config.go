package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig holds all configuration for the call server, loaded from
// environment variables.
type ServerConfig struct {
	Port       string
	APIBaseURL string
	LogEnv     string
	SecretKey  string

	// LiveKit
	LiveKitHTTPURL     string
	LiveKitWSURL       string
	LiveKitAPIKey      string
	LiveKitAPISecret   string
	LiveKitSIPEndpoint string
	AgentName          string

	// Twilio
	TwilioAccountSid  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// MSG91 webhook validation token
	MSG91AuthKey string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Pub/Sub
	GCPProjectID string
	PubSubTopic  string

	// Call lifecycle
	CallSetupTimeout time.Duration
	InitiateRPS      float64
}

// AgentConfig holds configuration for the agent worker.
type AgentConfig struct {
	LiveKitHTTPURL   string
	LiveKitWSURL     string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	AgentName        string
	APIBaseURL       string

	GeminiAPIKey string
	GeminiModel  string
	GeminiWSURL  string

	PollInterval time.Duration
}

// LoadServerConfig loads server configuration from environment variables
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:       getEnvOrDefault("PORT", "8081"),
		APIBaseURL: os.Getenv("API_BASE_URL"),
		LogEnv:     getEnvOrDefault("LOG_ENV", "development"),
		SecretKey:  os.Getenv("SECRET_KEY"),

		LiveKitHTTPURL:     os.Getenv("LIVEKIT_HTTP_URL"),
		LiveKitWSURL:       os.Getenv("LIVEKIT_WS_URL"),
		LiveKitAPIKey:      os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret:   os.Getenv("LIVEKIT_API_SECRET"),
		LiveKitSIPEndpoint: os.Getenv("LIVEKIT_SIP_ENDPOINT"),
		AgentName:          getEnvOrDefault("LIVEKIT_AGENT_NAME", "callcenter-agent"),

		TwilioAccountSid:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),

		MSG91AuthKey: os.Getenv("MSG91_AUTH_KEY"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		PubSubTopic:  os.Getenv("PUBSUB_TOPIC"),

		CallSetupTimeout: time.Duration(getEnvAsIntOrDefault("CALL_SETUP_TIMEOUT_MINUTES", 10)) * time.Minute,
		InitiateRPS:      getEnvAsFloatOrDefault("INITIATE_RATE_LIMIT", 5),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	return cfg, nil
}

// LoadAgentConfig loads agent worker configuration from environment variables
func LoadAgentConfig() (*AgentConfig, error) {
	cfg := &AgentConfig{
		LiveKitHTTPURL:   os.Getenv("LIVEKIT_HTTP_URL"),
		LiveKitWSURL:     os.Getenv("LIVEKIT_WS_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		AgentName:        getEnvOrDefault("LIVEKIT_AGENT_NAME", "callcenter-agent"),
		APIBaseURL:       os.Getenv("API_BASE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "models/gemini-2.0-flash-live-001"),
		GeminiWSURL:  getEnvOrDefault("GEMINI_WS_URL", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"),

		PollInterval: time.Duration(getEnvAsIntOrDefault("AGENT_POLL_INTERVAL_SECONDS", 2)) * time.Second,
	}

	if cfg.LiveKitWSURL == "" || cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
		return nil, fmt.Errorf("LIVEKIT_WS_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	return cfg, nil
}

// TwilioConfigured reports whether outbound dialing credentials are present
func (c *ServerConfig) TwilioConfigured() bool {
	return c.TwilioAccountSid != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
