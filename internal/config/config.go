// Package config loads avwrap configuration from a YAML file, AVWRAP_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: AVWRAP_LOGGING_LEVEL=debug.
const EnvPrefix = "AVWRAP"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Registry RegistryConfig `mapstructure:"registry"`
	Engines  EnginesConfig  `mapstructure:"engines"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	// SampleRate keeps 1 in N per-packet log lines.
	SampleRate int `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.ListenAddr, s.Port)
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// RegistryConfig selects where job records are kept.
type RegistryConfig struct {
	Backend   string        `mapstructure:"backend"` // memory or redis
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"` // finished jobs expire after TTL
}

// EnginesConfig tunes the built-in engines.
type EnginesConfig struct {
	Soft    SoftEngineConfig    `mapstructure:"soft"`
	RTPDump RTPDumpEngineConfig `mapstructure:"rtpdump"`
}

type SoftEngineConfig struct {
	Codecs       []string `mapstructure:"codecs"`
	DecoderDelay int      `mapstructure:"decoder_delay"`
	EncoderDelay int      `mapstructure:"encoder_delay"`
}

type RTPDumpEngineConfig struct {
	RTPMap       string `mapstructure:"rtpmap"`
	ProbePackets int    `mapstructure:"probe_packets"`
}

// PipelineConfig describes one remux or transcode job.
type PipelineConfig struct {
	Mode         string `mapstructure:"mode"` // remux or transcode
	Input        string `mapstructure:"input"`
	Output       string `mapstructure:"output"`
	OutputFormat string `mapstructure:"output_format"`

	FormatEngine string `mapstructure:"format_engine"`
	CodecEngine  string `mapstructure:"codec_engine"`

	// Streams lists the content types copied to the output.
	Streams []string `mapstructure:"streams"`

	// Encoder overrides per content type; empty keeps the input codec.
	VideoCodec string `mapstructure:"video_codec"`
	AudioCodec string `mapstructure:"audio_codec"`

	InputOptions   map[string]string `mapstructure:"input_options"`
	OutputOptions  map[string]string `mapstructure:"output_options"`
	HeaderOptions  map[string]string `mapstructure:"header_options"`
	DecoderOptions map[string]string `mapstructure:"decoder_options"`
	EncoderOptions map[string]string `mapstructure:"encoder_options"`

	// ReadRate limits packets read per second, 0 for unlimited.
	ReadRate  float64 `mapstructure:"read_rate"`
	ReadBurst int     `mapstructure:"read_burst"`
	// MaxPackets stops the job after that many packets, 0 for no limit.
	MaxPackets int64 `mapstructure:"max_packets"`
}

// Load reads configPath, which may be empty to use defaults and the
// environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.sample_rate", 100)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen_addr", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.health_interval", "30s")

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)

	// Registry defaults
	v.SetDefault("registry.backend", "memory")
	v.SetDefault("registry.key_prefix", "avwrap:jobs:")
	v.SetDefault("registry.ttl", "24h")

	// Engine defaults
	v.SetDefault("engines.soft.decoder_delay", 0)
	v.SetDefault("engines.soft.encoder_delay", 0)
	v.SetDefault("engines.rtpdump.probe_packets", 64)

	// Pipeline defaults
	v.SetDefault("pipeline.mode", "remux")
	v.SetDefault("pipeline.format_engine", "rtpdump")
	v.SetDefault("pipeline.codec_engine", "soft")
	v.SetDefault("pipeline.streams", []string{"video", "audio"})
	v.SetDefault("pipeline.read_rate", 0)
	v.SetDefault("pipeline.read_burst", 1)
}
