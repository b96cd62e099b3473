// Package config provides unified configuration for the jot server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (JOT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the jot server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Notes         NotesConfig         `yaml:"notes"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MB
}

// StorageConfig holds state management settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Realm is the Basic challenge realm for credential-less requests.
	Realm string `yaml:"realm"` // default: "Not authenticated."

	// AutoProvision creates unknown usernames on first Basic contact.
	AutoProvision bool `yaml:"auto_provision"` // default: true

	// ExemptPaths lists first path segments that bypass authentication.
	ExemptPaths []string `yaml:"exempt_paths"` // default: report, question, healthz, metrics

	// JWT enables an additional HS256 bearer stage when a secret is set.
	JWT JWTConfig `yaml:"jwt"`

	// Registration gates Basic access behind a challenge question.
	Registration RegistrationConfig `yaml:"registration"`
}

// RegistrationConfig holds the optional registration-question gate
// settings. The question routes are always served; the gate only
// controls whether unregistered accounts are redirected to them.
type RegistrationConfig struct {
	Enabled     bool          `yaml:"enabled"`      // default: false
	QuestionTTL time.Duration `yaml:"question_ttl"` // default: 1h
}

// JWTConfig holds the optional JWT authenticator settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`      // optional expected issuer claim
}

// Enabled reports whether the JWT stage should be wired into the chain.
func (c JWTConfig) Enabled() bool {
	return c.Secret != "" || c.SecretFile != ""
}

// NotesConfig holds note listing settings.
type NotesConfig struct {
	// PageLimit bounds listings and positional addressing.
	PageLimit int `yaml:"page_limit"` // default: 50
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds log level and debug category settings.
// Environment variables JOT_LOG_LEVEL and JOT_DEBUG take precedence.
type LoggingConfig struct {
	Level string `yaml:"level"` // default: "INFO"
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Realm:         "Not authenticated.",
			AutoProvision: true,
			ExemptPaths:   []string{"report", "question", "healthz", "metrics"},
			Registration: RegistrationConfig{
				QuestionTTL: time.Hour,
			},
		},
		Notes: NotesConfig{
			PageLimit: 50,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Logging: LoggingConfig{
				Level: "INFO",
			},
		},
	}
}
