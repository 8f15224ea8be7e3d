package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.ProviderOrder, []string{"gemini", "ollama"}) {
		t.Errorf("provider order = %v", cfg.ProviderOrder)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.SweepInterval != 10*time.Minute {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	if cfg.SessionBackend != "memory" {
		t.Errorf("session backend = %q", cfg.SessionBackend)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("gemini model = %q", cfg.GeminiModel)
	}
	if cfg.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("ollama url = %q", cfg.OllamaBaseURL)
	}
	if cfg.SheetName != "Sheet1" {
		t.Errorf("sheet name = %q", cfg.SheetName)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AI_PROVIDER_ORDER", " Ollama , gemini ")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("SESSION_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.ProviderOrder, []string{"ollama", "gemini"}) {
		t.Errorf("provider order = %v, want trimmed lower-cased list", cfg.ProviderOrder)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.SessionBackend != "redis" {
		t.Errorf("session backend = %q", cfg.SessionBackend)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.RedisAddr)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")

	cfg := Load()
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v, want default", cfg.SessionTTL)
	}
}

func TestSplitList_DropsEmptyEntries(t *testing.T) {
	got := splitList("gemini,,ollama, ,")
	if !reflect.DeepEqual(got, []string{"gemini", "ollama"}) {
		t.Errorf("splitList = %v", got)
	}
}
