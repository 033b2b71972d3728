package config

import (
	"strings"
	"testing"
	"time"
)

var medvoiceEnvKeys = []string{
	"MEDVOICE_ADDR",
	"MEDVOICE_CORS_ORIGINS",
	"MEDVOICE_LLM_PROVIDER",
	"MEDVOICE_GEMINI_API_KEY",
	"MEDVOICE_GEMINI_MODEL",
	"MEDVOICE_GEMINI_BATCH_MODEL",
	"MEDVOICE_OPENAI_API_KEY",
	"MEDVOICE_OPENAI_MODEL",
	"MEDVOICE_OPENAI_BATCH_MODEL",
	"MEDVOICE_RESPONSE_MAX_TOKENS",
	"MEDVOICE_HISTORY_WINDOW",
	"MEDVOICE_DAILY_API_KEY",
	"MEDVOICE_DAILY_BASE_URL",
	"MEDVOICE_ROOM_EXPIRY",
	"MEDVOICE_VOICE_SESSION_TIMEOUT",
	"MEDVOICE_WS_MAX_MESSAGE_BYTES",
	"MEDVOICE_WS_HANDSHAKE_TIMEOUT",
	"MEDVOICE_WS_PING_INTERVAL",
	"MEDVOICE_WS_WRITE_TIMEOUT",
	"MEDVOICE_WS_MAX_DURATION",
	"MEDVOICE_READ_HEADER_TIMEOUT",
	"MEDVOICE_READ_TIMEOUT",
	"MEDVOICE_SHUTDOWN_GRACE_PERIOD",
}

func clearMedvoiceEnv(t *testing.T) {
	t.Helper()
	for _, key := range medvoiceEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearMedvoiceEnv(t)
	t.Setenv("MEDVOICE_GEMINI_API_KEY", "gm-test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8000" {
		t.Fatalf("Addr = %q, want :8000", cfg.Addr)
	}
	if cfg.LLMProvider != LLMProviderGemini {
		t.Fatalf("LLMProvider = %q, want %q", cfg.LLMProvider, LLMProviderGemini)
	}
	if cfg.GeminiModel != "gemini-2.0-flash-lite" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.GeminiBatchModel != "gemini-2.0-flash" {
		t.Fatalf("GeminiBatchModel = %q", cfg.GeminiBatchModel)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.ResponseMaxTokens != 200 {
		t.Fatalf("ResponseMaxTokens = %d, want 200", cfg.ResponseMaxTokens)
	}
	if cfg.HistoryWindow != 10 {
		t.Fatalf("HistoryWindow = %d, want 10", cfg.HistoryWindow)
	}
	if cfg.DailyAPIKey != "" {
		t.Fatalf("DailyAPIKey = %q, want empty", cfg.DailyAPIKey)
	}
	if cfg.DailyBaseURL != "https://api.daily.co" {
		t.Fatalf("DailyBaseURL = %q", cfg.DailyBaseURL)
	}
	if cfg.RoomExpiry != time.Hour {
		t.Fatalf("RoomExpiry = %v, want 1h", cfg.RoomExpiry)
	}
	if cfg.VoiceSessionTimeout != 10*time.Minute {
		t.Fatalf("VoiceSessionTimeout = %v, want 10m", cfg.VoiceSessionTimeout)
	}
	if cfg.WSMaxMessageBytes != 64*1024 {
		t.Fatalf("WSMaxMessageBytes = %d, want 65536", cfg.WSMaxMessageBytes)
	}
	if cfg.WSHandshakeTimeout != 5*time.Second {
		t.Fatalf("WSHandshakeTimeout = %v, want 5s", cfg.WSHandshakeTimeout)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSMaxSessionDuration != 30*time.Minute {
		t.Fatalf("WSMaxSessionDuration = %v, want 30m", cfg.WSMaxSessionDuration)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["http://localhost:5173"]; !ok {
		t.Fatalf("missing default origin http://localhost:5173")
	}
	if _, ok := cfg.CORSAllowedOrigins["http://localhost:3000"]; !ok {
		t.Fatalf("missing default origin http://localhost:3000")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearMedvoiceEnv(t)
	t.Setenv("MEDVOICE_ADDR", ":9000")
	t.Setenv("MEDVOICE_LLM_PROVIDER", "openai")
	t.Setenv("MEDVOICE_OPENAI_API_KEY", "sk-test")
	t.Setenv("MEDVOICE_OPENAI_MODEL", "gpt-4o")
	t.Setenv("MEDVOICE_OPENAI_BATCH_MODEL", "gpt-4.1")
	t.Setenv("MEDVOICE_RESPONSE_MAX_TOKENS", "150")
	t.Setenv("MEDVOICE_HISTORY_WINDOW", "6")
	t.Setenv("MEDVOICE_DAILY_API_KEY", "daily-test")
	t.Setenv("MEDVOICE_DAILY_BASE_URL", "https://daily.example")
	t.Setenv("MEDVOICE_ROOM_EXPIRY", "30m")
	t.Setenv("MEDVOICE_VOICE_SESSION_TIMEOUT", "7m")
	t.Setenv("MEDVOICE_WS_MAX_MESSAGE_BYTES", "32768")
	t.Setenv("MEDVOICE_WS_HANDSHAKE_TIMEOUT", "4s")
	t.Setenv("MEDVOICE_WS_PING_INTERVAL", "9s")
	t.Setenv("MEDVOICE_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("MEDVOICE_WS_MAX_DURATION", "45m")
	t.Setenv("MEDVOICE_READ_HEADER_TIMEOUT", "12s")
	t.Setenv("MEDVOICE_READ_TIMEOUT", "33s")
	t.Setenv("MEDVOICE_SHUTDOWN_GRACE_PERIOD", "15s")
	t.Setenv("MEDVOICE_CORS_ORIGINS", "https://clinic.example, https://intake.example,,")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q, want :9000", cfg.Addr)
	}
	if cfg.LLMProvider != LLMProviderOpenAI || cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("provider = %q key = %q", cfg.LLMProvider, cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIModel != "gpt-4o" || cfg.OpenAIBatchModel != "gpt-4.1" {
		t.Fatalf("openai models = %q/%q", cfg.OpenAIModel, cfg.OpenAIBatchModel)
	}
	if cfg.ResponseMaxTokens != 150 || cfg.HistoryWindow != 6 {
		t.Fatalf("generation knobs = %d/%d", cfg.ResponseMaxTokens, cfg.HistoryWindow)
	}
	if cfg.DailyAPIKey != "daily-test" || cfg.DailyBaseURL != "https://daily.example" {
		t.Fatalf("daily = %q/%q", cfg.DailyAPIKey, cfg.DailyBaseURL)
	}
	if cfg.RoomExpiry != 30*time.Minute || cfg.VoiceSessionTimeout != 7*time.Minute {
		t.Fatalf("voice durations = %v/%v", cfg.RoomExpiry, cfg.VoiceSessionTimeout)
	}
	if cfg.WSMaxMessageBytes != 32768 || cfg.WSHandshakeTimeout != 4*time.Second || cfg.WSPingInterval != 9*time.Second || cfg.WSWriteTimeout != 3*time.Second || cfg.WSMaxSessionDuration != 45*time.Minute {
		t.Fatalf("ws knobs = %d/%v/%v/%v/%v", cfg.WSMaxMessageBytes, cfg.WSHandshakeTimeout, cfg.WSPingInterval, cfg.WSWriteTimeout, cfg.WSMaxSessionDuration)
	}
	if cfg.ReadHeaderTimeout != 12*time.Second || cfg.ReadTimeout != 33*time.Second || cfg.ShutdownGracePeriod != 15*time.Second {
		t.Fatalf("server timeouts = %v/%v/%v", cfg.ReadHeaderTimeout, cfg.ReadTimeout, cfg.ShutdownGracePeriod)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://intake.example"]; !ok {
		t.Fatalf("missing https://intake.example")
	}
}

func TestLoadFromEnv_ProviderKeyRequired(t *testing.T) {
	t.Run("gemini", func(t *testing.T) {
		clearMedvoiceEnv(t)

		_, err := LoadFromEnv()
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "MEDVOICE_GEMINI_API_KEY") {
			t.Fatalf("error = %v, expected MEDVOICE_GEMINI_API_KEY in message", err)
		}
	})

	t.Run("openai", func(t *testing.T) {
		clearMedvoiceEnv(t)
		t.Setenv("MEDVOICE_LLM_PROVIDER", "openai")

		_, err := LoadFromEnv()
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "MEDVOICE_OPENAI_API_KEY") {
			t.Fatalf("error = %v, expected MEDVOICE_OPENAI_API_KEY in message", err)
		}
	})

	t.Run("openai does not need gemini key", func(t *testing.T) {
		clearMedvoiceEnv(t)
		t.Setenv("MEDVOICE_LLM_PROVIDER", "openai")
		t.Setenv("MEDVOICE_OPENAI_API_KEY", "sk-test")

		if _, err := LoadFromEnv(); err != nil {
			t.Fatalf("LoadFromEnv() error = %v", err)
		}
	})
}

func TestLoadFromEnv_UnknownProvider(t *testing.T) {
	clearMedvoiceEnv(t)
	t.Setenv("MEDVOICE_LLM_PROVIDER", "anthropic")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "MEDVOICE_LLM_PROVIDER") {
		t.Fatalf("error = %v, expected MEDVOICE_LLM_PROVIDER in message", err)
	}
}

func TestLoadFromEnv_InvalidBounds(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name:      "response max tokens",
			env:       map[string]string{"MEDVOICE_RESPONSE_MAX_TOKENS": "0"},
			errSubstr: "MEDVOICE_RESPONSE_MAX_TOKENS",
		},
		{
			name:      "history window",
			env:       map[string]string{"MEDVOICE_HISTORY_WINDOW": "-1"},
			errSubstr: "MEDVOICE_HISTORY_WINDOW",
		},
		{
			name:      "room expiry",
			env:       map[string]string{"MEDVOICE_ROOM_EXPIRY": "0s"},
			errSubstr: "MEDVOICE_ROOM_EXPIRY",
		},
		{
			name:      "voice session timeout",
			env:       map[string]string{"MEDVOICE_VOICE_SESSION_TIMEOUT": "0s"},
			errSubstr: "MEDVOICE_VOICE_SESSION_TIMEOUT",
		},
		{
			name:      "ws max message bytes",
			env:       map[string]string{"MEDVOICE_WS_MAX_MESSAGE_BYTES": "0"},
			errSubstr: "MEDVOICE_WS_MAX_MESSAGE_BYTES",
		},
		{
			name:      "ws handshake timeout",
			env:       map[string]string{"MEDVOICE_WS_HANDSHAKE_TIMEOUT": "0s"},
			errSubstr: "MEDVOICE_WS_HANDSHAKE_TIMEOUT",
		},
		{
			name:      "ws ping interval",
			env:       map[string]string{"MEDVOICE_WS_PING_INTERVAL": "0s"},
			errSubstr: "MEDVOICE_WS_PING_INTERVAL",
		},
		{
			name:      "ws write timeout",
			env:       map[string]string{"MEDVOICE_WS_WRITE_TIMEOUT": "0s"},
			errSubstr: "MEDVOICE_WS_WRITE_TIMEOUT",
		},
		{
			name:      "ws max duration",
			env:       map[string]string{"MEDVOICE_WS_MAX_DURATION": "0s"},
			errSubstr: "MEDVOICE_WS_MAX_DURATION",
		},
		{
			name:      "shutdown grace period",
			env:       map[string]string{"MEDVOICE_SHUTDOWN_GRACE_PERIOD": "0s"},
			errSubstr: "MEDVOICE_SHUTDOWN_GRACE_PERIOD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearMedvoiceEnv(t)
			t.Setenv("MEDVOICE_GEMINI_API_KEY", "gm-test")
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}

func TestLoadFromEnv_IgnoresUnparseableValues(t *testing.T) {
	clearMedvoiceEnv(t)
	t.Setenv("MEDVOICE_GEMINI_API_KEY", "gm-test")
	t.Setenv("MEDVOICE_RESPONSE_MAX_TOKENS", "not-a-number")
	t.Setenv("MEDVOICE_ROOM_EXPIRY", "not-a-duration")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.ResponseMaxTokens != 200 {
		t.Fatalf("ResponseMaxTokens = %d, want default 200", cfg.ResponseMaxTokens)
	}
	if cfg.RoomExpiry != time.Hour {
		t.Fatalf("RoomExpiry = %v, want default 1h", cfg.RoomExpiry)
	}
}
