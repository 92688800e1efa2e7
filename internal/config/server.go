// Package config provides configuration management for orggraph.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// StoreBackend selects the graph store implementation.
type StoreBackend string

const (
	StoreNeo4j  StoreBackend = "neo4j"
	StoreMemory StoreBackend = "memory"
)

// Neo4jConfig holds graph store connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"      env:"NEO4J_URI"`
	Username string `yaml:"username" env:"NEO4J_USERNAME"`
	Password string `yaml:"password" env:"NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"NEO4J_DATABASE"`
}

// ServerConfig holds server configuration. Values come from defaults, then
// an optional YAML file named by CONFIG_FILE, then environment variables.
type ServerConfig struct {
	Environment  Environment  `yaml:"env"           env:"ENV"`
	ListenAddr   string       `yaml:"listen_addr"   env:"LISTEN_ADDR"`
	LogLevel     string       `yaml:"log_level"     env:"LOG_LEVEL"`
	StoreBackend StoreBackend `yaml:"store_backend" env:"STORE_BACKEND"`
	Neo4j        Neo4jConfig  `yaml:"neo4j"`

	CORSOrigins       []string      `yaml:"cors_origins"        env:"CORS_ORIGINS" envSeparator:","`
	RateLimitRequests int64         `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS"`
	RateLimitPeriod   time.Duration `yaml:"rate_limit_period"   env:"RATE_LIMIT_PERIOD"`
	RedisURL          string        `yaml:"redis_url"           env:"REDIS_URL"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"      env:"MAX_BODY_BYTES"`

	AuditSchedule string `yaml:"audit_schedule"  env:"AUDIT_SCHEDULE"`
	MaxChainDepth int    `yaml:"max_chain_depth" env:"MAX_CHAIN_DEPTH"`
}

// DefaultServerConfig returns the configuration used when nothing is set.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Environment:  EnvDevelopment,
		ListenAddr:   ":8080",
		LogLevel:     "info",
		StoreBackend: StoreNeo4j,
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		RateLimitRequests: 100,
		RateLimitPeriod:   time.Minute,
		MaxBodyBytes:      1 << 20,
		AuditSchedule:     "@every 1h",
		MaxChainDepth:     32,
	}
}

// LoadServerConfig reads the YAML file named by CONFIG_FILE, if any, and
// applies environment variables on top.
func LoadServerConfig() (ServerConfig, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load reads configuration from path (skipped when empty) and the environment.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize falls back to defaults for out-of-range values and rejects
// settings the server cannot start with.
func (c *ServerConfig) normalize() error {
	defaults := DefaultServerConfig()

	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		c.Environment = EnvDevelopment
	}

	c.StoreBackend = StoreBackend(strings.ToLower(string(c.StoreBackend)))
	switch c.StoreBackend {
	case StoreNeo4j, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be neo4j or memory", c.StoreBackend)
	}

	if c.StoreBackend == StoreNeo4j && c.Neo4j.URI == "" {
		return fmt.Errorf("NEO4J_URI is required when STORE_BACKEND is neo4j")
	}

	if c.RateLimitRequests < 0 {
		c.RateLimitRequests = defaults.RateLimitRequests
	}
	if c.RateLimitPeriod <= 0 {
		c.RateLimitPeriod = defaults.RateLimitPeriod
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if c.MaxChainDepth <= 0 {
		c.MaxChainDepth = defaults.MaxChainDepth
	}
	if c.AuditSchedule == "" {
		c.AuditSchedule = defaults.AuditSchedule
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}
