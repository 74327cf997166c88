package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Timezone != "Africa/Harare" {
		t.Errorf("Timezone = %q, want Africa/Harare", cfg.Timezone)
	}
	if cfg.GreetingMinScore != 0.7 {
		t.Errorf("GreetingMinScore = %v, want 0.7", cfg.GreetingMinScore)
	}
	if cfg.OracleSentinel != "sorry" {
		t.Errorf("OracleSentinel = %q, want sorry", cfg.OracleSentinel)
	}
	if len(cfg.GreetingPhrases) == 0 {
		t.Fatal("GreetingPhrases should have defaults")
	}
	if cfg.StaffJWTTTL != 12*time.Hour {
		t.Errorf("StaffJWTTTL = %v, want 12h", cfg.StaffJWTTTL)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GREETING_PHRASES", " hi , hello ,,hey ")
	t.Setenv("USE_REDIS_SESSIONS", "true")
	t.Setenv("GREETING_MIN_SCORE", "0.85")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	want := []string{"hi", "hello", "hey"}
	if len(cfg.GreetingPhrases) != len(want) {
		t.Fatalf("GreetingPhrases = %v, want %v", cfg.GreetingPhrases, want)
	}
	for i, p := range want {
		if cfg.GreetingPhrases[i] != p {
			t.Errorf("GreetingPhrases[%d] = %q, want %q", i, cfg.GreetingPhrases[i], p)
		}
	}
	if !cfg.UseRedisSessions {
		t.Error("UseRedisSessions should be true")
	}
	if cfg.GreetingMinScore != 0.85 {
		t.Errorf("GreetingMinScore = %v, want 0.85", cfg.GreetingMinScore)
	}
}
