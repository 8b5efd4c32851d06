package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the full fintel configuration, loaded from an optional YAML
// file and overridable via environment variables.
type Config struct {
	Service      ServiceConfig      `mapstructure:"service" yaml:"service"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge" yaml:"knowledge"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Tracing      TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// ServiceConfig controls the HTTP serve mode.
type ServiceConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" yaml:"graceful_timeout"`
}

// LoggingConfig selects the zap logger profile.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// LLMConfig points the completion client at an OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	PlannerModel string        `mapstructure:"planner_model" yaml:"planner_model"`
	WorkerModel  string        `mapstructure:"worker_model" yaml:"worker_model"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// KnowledgeConfig configures the Qdrant-backed knowledge base.
type KnowledgeConfig struct {
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	TopK       int           `mapstructure:"top_k" yaml:"top_k"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Circuit breaker tuning
	BreakerFailureThreshold uint32        `mapstructure:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerResetTimeout     time.Duration `mapstructure:"breaker_reset_timeout" yaml:"breaker_reset_timeout"`
}

// CacheConfig configures the Redis research cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr    string        `mapstructure:"addr" yaml:"addr"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// OrchestratorConfig holds the control-loop tunables.
type OrchestratorConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	QualityThreshold float64       `mapstructure:"quality_threshold" yaml:"quality_threshold"`
	ResearchWorkers  int           `mapstructure:"research_workers" yaml:"research_workers"`
	ToolRateLimit    float64       `mapstructure:"tool_rate_limit" yaml:"tool_rate_limit"` // tool calls per second, 0 = unlimited
	CallTimeout      time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`       // per external call
}

// TracingConfig configures OTLP export.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			GracefulTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		LLM: LLMConfig{
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
			PlannerModel: "gemini-2.5-flash",
			WorkerModel:  "gemini-2.5-flash",
			Timeout:      60 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Host:                    "localhost",
			Port:                    6333,
			Collection:              "finance_news",
			TopK:                    8,
			Timeout:                 5 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerResetTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     15 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:    2,
			QualityThreshold: 0.6,
			ResearchWorkers:  4,
			ToolRateLimit:    0,
			CallTimeout:      60 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "fintel",
			OTLPEndpoint: "localhost:4317",
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090},
	}
}

// Load reads the YAML file at path (or CONFIG_PATH when path is empty),
// merges it over the defaults, then applies environment overrides and
// validates. A missing config file is not an error; env-only operation is
// supported.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v := viper.New()
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			if err := v.Unmarshal(cfg); err != nil {
				return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces invariants on the loaded configuration.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxIterations < 1 {
		return fmt.Errorf("orchestrator.max_iterations must be >= 1, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.QualityThreshold < 0 || c.Orchestrator.QualityThreshold > 1 {
		return fmt.Errorf("orchestrator.quality_threshold must be in [0,1], got %.2f", c.Orchestrator.QualityThreshold)
	}
	if c.Orchestrator.ResearchWorkers < 1 {
		return fmt.Errorf("orchestrator.research_workers must be >= 1, got %d", c.Orchestrator.ResearchWorkers)
	}
	if c.Knowledge.Collection == "" {
		return fmt.Errorf("knowledge.collection must not be empty")
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port out of range: %d", c.Service.Port)
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DEFAULT_PLANNER_MODEL"); v != "" {
		c.LLM.PlannerModel = v
	}
	if v := os.Getenv("DEFAULT_WORKER_MODEL"); v != "" {
		c.LLM.WorkerModel = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		c.Knowledge.Host = v
	}
	if v := envInt("QDRANT_PORT"); v > 0 {
		c.Knowledge.Port = v
	}
	if v := os.Getenv("KNOWLEDGE_COLLECTION"); v != "" {
		c.Knowledge.Collection = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}
	if v := envInt("ORCHESTRATOR_MAX_ITERATIONS"); v > 0 {
		c.Orchestrator.MaxIterations = v
	}
	if v := envFloat("ORCHESTRATOR_QUALITY_THRESHOLD"); v > 0 {
		c.Orchestrator.QualityThreshold = v
	}
	if v := envInt("RESEARCH_WORKERS"); v > 0 {
		c.Orchestrator.ResearchWorkers = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
		c.Tracing.Enabled = true
	}
	if v := envInt("METRICS_PORT"); v > 0 {
		c.Metrics.Port = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envFloat(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
