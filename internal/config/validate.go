package config

import (
	"fmt"

	"github.com/zsiec/avwrap/pkg/media"
)

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	// Redis settings only matter when something uses them.
	if c.Registry.Backend == "redis" {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Engines.Validate(); err != nil {
		return fmt.Errorf("engines config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	if l.SampleRate < 1 {
		return fmt.Errorf("sample_rate must be at least 1")
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}

	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return fmt.Errorf("read_timeout and write_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (r *RegistryConfig) Validate() error {
	switch r.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown registry backend %q", r.Backend)
	}

	if r.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	return nil
}

func (e *EnginesConfig) Validate() error {
	if e.Soft.DecoderDelay < 0 || e.Soft.EncoderDelay < 0 {
		return fmt.Errorf("soft engine delays cannot be negative")
	}

	if e.RTPDump.ProbePackets <= 0 {
		return fmt.Errorf("rtpdump probe_packets must be positive")
	}

	return nil
}

// Validate checks the job-independent settings. Input and output are
// checked when a job starts, since the CLI fills them from arguments.
func (p *PipelineConfig) Validate() error {
	if p.Mode != "remux" && p.Mode != "transcode" {
		return fmt.Errorf("mode must be 'remux' or 'transcode', got %q", p.Mode)
	}

	if p.FormatEngine == "" {
		return fmt.Errorf("format_engine cannot be empty")
	}

	if p.Mode == "transcode" && p.CodecEngine == "" {
		return fmt.Errorf("codec_engine is required for transcode")
	}

	if len(p.Streams) == 0 {
		return fmt.Errorf("at least one stream type is required")
	}

	for _, s := range p.Streams {
		if _, err := media.ParseContentType(s); err != nil {
			return fmt.Errorf("invalid stream type %q", s)
		}
	}

	if p.ReadRate < 0 {
		return fmt.Errorf("read_rate cannot be negative")
	}

	if p.ReadRate > 0 && p.ReadBurst < 1 {
		return fmt.Errorf("read_burst must be at least 1 when read_rate is set")
	}

	if p.MaxPackets < 0 {
		return fmt.Errorf("max_packets cannot be negative")
	}

	return nil
}

// StreamTypes returns Streams parsed into content types.
func (p *PipelineConfig) StreamTypes() []media.ContentType {
	out := make([]media.ContentType, 0, len(p.Streams))
	for _, s := range p.Streams {
		if t, err := media.ParseContentType(s); err == nil {
			out = append(out, t)
		}
	}
	return out
}
