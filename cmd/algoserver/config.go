package main

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// config carries every environment-sourced knob the server needs at
// startup. Defaults live in newConfig; env vars only override.
type config struct {
	ModulesList    string  `env:"ALGO_MODULES"`
	ModuleDir      string  `env:"ALGO_MODULE_DIR"`
	MetadataDir    string  `env:"ALGO_METADATA_CONFIG_DIR"`
	AuditDSN       string  `env:"ALGO_AUDIT_DSN"`
	LogLevel       string  `env:"ALGO_LOG_LEVEL"`
	LogFormat      string  `env:"ALGO_LOG_FORMAT"`
	RateLimitRPS   int     `env:"ALGO_RATE_LIMIT_RPS"`
	RateLimitBurst int     `env:"ALGO_RATE_LIMIT_BURST"`
	CORSOrigins    string  `env:"ALGO_CORS_ALLOWED_ORIGINS"`
	HTTPTimeoutS   float64 `env:"ALGO_HTTP_REQUEST_TIMEOUT_S"`

	BindHost string `env:"SERVICE_BIND_HOST"`
	Port     int    `env:"SERVICE_PORT"`
	Host     string `env:"SERVICE_HOST"`
	Protocol string `env:"SERVICE_PROTOCOL"`

	GlobalMaxWorkers int     `env:"EXECUTOR_GLOBAL_MAX_WORKERS"`
	GlobalQueueSize  int     `env:"EXECUTOR_GLOBAL_QUEUE_SIZE"`
	DefaultTimeoutS  float64 `env:"EXECUTOR_DEFAULT_TIMEOUT_S"`
	KillGraceS       float64 `env:"EXECUTOR_KILL_GRACE_S"`
	KillTree         bool    `env:"EXECUTOR_KILL_TREE"`

	SwaggerEnabled       bool   `env:"SERVICE_SWAGGER_ENABLED"`
	SwaggerOpenOnStartup bool   `env:"SERVICE_SWAGGER_OPEN_ON_STARTUP"`
	SwaggerPath          string `env:"SERVICE_SWAGGER_PATH"`

	RegistryEnabled bool `env:"SERVICE_REGISTRY_ENABLED"`
}

// newConfig returns a config populated with the documented environment
// defaults.
func newConfig() *config {
	return &config{
		ModuleDir:        "./algorithms",
		LogLevel:         "info",
		LogFormat:        "json",
		RateLimitRPS:     50,
		RateLimitBurst:   100,
		BindHost:         "0.0.0.0",
		Port:             8080,
		Host:             "localhost",
		Protocol:         "http",
		GlobalMaxWorkers: 4,
		GlobalQueueSize:  64,
		DefaultTimeoutS:  30,
		KillGraceS:       5,
		HTTPTimeoutS:     60,
		SwaggerPath:      "/docs",
	}
}

// loadConfig loads a .env file if present, then applies environment
// overrides on top of the documented defaults.
func loadConfig() (*config, error) {
	_ = godotenv.Load()

	cfg := newConfig()
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "no target field") && !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}

// modules returns ALGO_MODULES split on commas, trimmed, empties dropped.
func (c *config) modules() []string {
	if strings.TrimSpace(c.ModulesList) == "" {
		return nil
	}
	parts := strings.Split(c.ModulesList, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// corsOrigins returns ALGO_CORS_ALLOWED_ORIGINS split on commas, trimmed,
// empties dropped.
func (c *config) corsOrigins() []string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// baseURL is the advertised URL an external catalog/registry publisher
// (SERVICE_REGISTRY_ENABLED) would need, though nothing in this binary
// implements that publisher itself.
func (c *config) baseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}
