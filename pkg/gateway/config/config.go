package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderOpenAI LLMProvider = "openai"
)

type Config struct {
	Addr string

	// CORS
	CORSAllowedOrigins map[string]struct{}

	// Conversation backend. Only the selected provider's key is required.
	LLMProvider       LLMProvider
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBatchModel  string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBatchModel  string
	ResponseMaxTokens int
	HistoryWindow     int

	// Daily WebRTC rooms. An empty DailyAPIKey leaves voice sessions
	// unprovisioned; creating one then fails with 503.
	DailyAPIKey  string
	DailyBaseURL string
	RoomExpiry   time.Duration

	// Hard cap on a single voice session's bot runtime.
	VoiceSessionTimeout time.Duration

	// Live WebSocket mode (/v1/sessions/{id}/live).
	WSMaxMessageBytes    int64
	WSHandshakeTimeout   time.Duration
	WSPingInterval       time.Duration
	WSWriteTimeout       time.Duration
	WSMaxSessionDuration time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// Vite and CRA dev servers, matching the bundled frontend setups.
const defaultCORSOrigins = "http://localhost:5173,http://localhost:3000"

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("MEDVOICE_ADDR", ":8000"),
		CORSAllowedOrigins:   make(map[string]struct{}),
		LLMProvider:          LLMProvider(envOr("MEDVOICE_LLM_PROVIDER", string(LLMProviderGemini))),
		GeminiAPIKey:         strings.TrimSpace(os.Getenv("MEDVOICE_GEMINI_API_KEY")),
		GeminiModel:          envOr("MEDVOICE_GEMINI_MODEL", "gemini-2.0-flash-lite"),
		GeminiBatchModel:     envOr("MEDVOICE_GEMINI_BATCH_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:         strings.TrimSpace(os.Getenv("MEDVOICE_OPENAI_API_KEY")),
		OpenAIModel:          envOr("MEDVOICE_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBatchModel:     envOr("MEDVOICE_OPENAI_BATCH_MODEL", "gpt-4o-mini"),
		ResponseMaxTokens:    envIntOr("MEDVOICE_RESPONSE_MAX_TOKENS", 200),
		HistoryWindow:        envIntOr("MEDVOICE_HISTORY_WINDOW", 10),
		DailyAPIKey:          strings.TrimSpace(os.Getenv("MEDVOICE_DAILY_API_KEY")),
		DailyBaseURL:         envOr("MEDVOICE_DAILY_BASE_URL", "https://api.daily.co"),
		RoomExpiry:           envDurationOr("MEDVOICE_ROOM_EXPIRY", time.Hour),
		VoiceSessionTimeout:  envDurationOr("MEDVOICE_VOICE_SESSION_TIMEOUT", 10*time.Minute),
		WSMaxMessageBytes:    envInt64Or("MEDVOICE_WS_MAX_MESSAGE_BYTES", 64*1024),
		WSHandshakeTimeout:   envDurationOr("MEDVOICE_WS_HANDSHAKE_TIMEOUT", 5*time.Second),
		WSPingInterval:       envDurationOr("MEDVOICE_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("MEDVOICE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxSessionDuration: envDurationOr("MEDVOICE_WS_MAX_DURATION", 30*time.Minute),
		ReadHeaderTimeout:    envDurationOr("MEDVOICE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("MEDVOICE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("MEDVOICE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(envOr("MEDVOICE_CORS_ORIGINS", defaultCORSOrigins)) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.LLMProvider {
	case LLMProviderGemini, LLMProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("MEDVOICE_LLM_PROVIDER must be one of gemini|openai")
	}

	if cfg.LLMProvider == LLMProviderGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("MEDVOICE_GEMINI_API_KEY must be set when MEDVOICE_LLM_PROVIDER=gemini")
	}
	if cfg.LLMProvider == LLMProviderOpenAI && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("MEDVOICE_OPENAI_API_KEY must be set when MEDVOICE_LLM_PROVIDER=openai")
	}

	if cfg.ResponseMaxTokens <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_RESPONSE_MAX_TOKENS must be > 0")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_HISTORY_WINDOW must be > 0")
	}
	if strings.TrimSpace(cfg.DailyBaseURL) == "" {
		return Config{}, fmt.Errorf("MEDVOICE_DAILY_BASE_URL must not be empty")
	}
	if cfg.RoomExpiry <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_ROOM_EXPIRY must be > 0")
	}
	if cfg.VoiceSessionTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_VOICE_SESSION_TIMEOUT must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_WS_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_WS_MAX_DURATION must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("MEDVOICE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
