// Package config loads the engine's settings from environment variables.
// Every knob has a default; a bare environment runs the engine in mock mode
// against a local SQLite file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the feedback engine.
type Config struct {
	Port     string
	LogLevel string

	// Store
	StorePath string

	// LLM providers. Absence of both keys forces the mock path.
	PrimaryLLMKey       string
	SecondaryLLMKey     string
	PrimaryLLMModel     string
	SecondaryLLMModel   string
	PrimaryLLMBaseURL   string
	SecondaryLLMBaseURL string
	MockMode            bool
	MockLatency         time.Duration

	// Race orchestration. The client timeout must stay strictly above the
	// race deadline: the orchestrator owns the user-visible bound.
	AIDeadline     time.Duration
	LLMTimeout     time.Duration
	LLMMaxInflight int64

	// Alerts
	AlertWebhookURL string

	// Reconciliation
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	ReconcileGap       time.Duration

	AllowedOrigins []string
}

// Load reads configuration from AEGIS_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_url", "feedback.db")
	v.SetDefault("primary_llm_key", "")
	v.SetDefault("secondary_llm_key", "")
	v.SetDefault("primary_llm_model", "llama-3.1-8b-instant")
	v.SetDefault("secondary_llm_model", "gpt-4o-mini")
	v.SetDefault("primary_llm_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("secondary_llm_base_url", "https://api.openai.com/v1")
	v.SetDefault("mock_mode", false)
	v.SetDefault("mock_latency", "300ms")
	v.SetDefault("ai_deadline", "450ms")
	v.SetDefault("llm_timeout", "5s")
	v.SetDefault("llm_max_inflight", 50)
	v.SetDefault("alert_webhook_url", "")
	v.SetDefault("reconcile_interval", "5s")
	v.SetDefault("reconcile_batch_size", 10)
	v.SetDefault("reconcile_gap", "1s")
	v.SetDefault("allowed_origins", "")

	cfg := &Config{
		Port:                v.GetString("port"),
		LogLevel:            v.GetString("log_level"),
		StorePath:           v.GetString("store_url"),
		PrimaryLLMKey:       v.GetString("primary_llm_key"),
		SecondaryLLMKey:     v.GetString("secondary_llm_key"),
		PrimaryLLMModel:     v.GetString("primary_llm_model"),
		SecondaryLLMModel:   v.GetString("secondary_llm_model"),
		PrimaryLLMBaseURL:   v.GetString("primary_llm_base_url"),
		SecondaryLLMBaseURL: v.GetString("secondary_llm_base_url"),
		MockMode:            v.GetBool("mock_mode"),
		MockLatency:         v.GetDuration("mock_latency"),
		AIDeadline:          v.GetDuration("ai_deadline"),
		LLMTimeout:          v.GetDuration("llm_timeout"),
		LLMMaxInflight:      v.GetInt64("llm_max_inflight"),
		AlertWebhookURL:     v.GetString("alert_webhook_url"),
		ReconcileInterval:   v.GetDuration("reconcile_interval"),
		ReconcileBatchSize:  v.GetInt("reconcile_batch_size"),
		ReconcileGap:        v.GetDuration("reconcile_gap"),
	}

	if origins := v.GetString("allowed_origins"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	// The race deadline is meaningless if the client gives up first.
	if cfg.LLMTimeout <= cfg.AIDeadline {
		cfg.LLMTimeout = cfg.AIDeadline + 5*time.Second
	}

	return cfg, nil
}

// UseMock reports whether the LLM layer should run the mock path.
func (c *Config) UseMock() bool {
	return c.MockMode || (c.PrimaryLLMKey == "" && c.SecondaryLLMKey == "")
}
