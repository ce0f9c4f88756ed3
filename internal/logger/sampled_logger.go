package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Per-packet log categories of the pipeline.
const (
	CategoryPacket  = "packet"
	CategoryRetry   = "retry"
	CategoryRescale = "rescale"
	CategoryDrop    = "drop"
)

// SampledLogger thins out high-frequency log lines per category: the first
// Burst lines of a category are logged, then one in Every, and at least one
// per Interval. Errors are never sampled.
type SampledLogger struct {
	base     logrus.FieldLogger
	mu       sync.Mutex
	samplers map[string]*sampler
	burst    int
	every    int
	interval time.Duration
}

type sampler struct {
	sometimes rate.Sometimes
	total     atomic.Int64
	logged    atomic.Int64
}

// SamplerStats holds statistics for a log category.
type SamplerStats struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Logged  int64   `json:"logged"`
	Dropped int64   `json:"dropped"`
	Rate    float64 `json:"rate"`
}

// NewSampledLogger creates a sampled logger. every < 1 is treated as 1.
func NewSampledLogger(base logrus.FieldLogger, burst, every int, interval time.Duration) *SampledLogger {
	if every < 1 {
		every = 1
	}
	return &SampledLogger{
		base:     base,
		samplers: make(map[string]*sampler),
		burst:    burst,
		every:    every,
		interval: interval,
	}
}

func (s *SampledLogger) sampler(category string) *sampler {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.samplers[category]
	if !ok {
		sm = &sampler{sometimes: rate.Sometimes{First: s.burst, Every: s.every, Interval: s.interval}}
		s.samplers[category] = sm
	}
	return sm
}

// Log logs msg at level if the category sampler lets it through.
func (s *SampledLogger) Log(level logrus.Level, category, msg string, fields logrus.Fields) {
	sm := s.sampler(category)
	sm.total.Add(1)
	if level <= logrus.ErrorLevel {
		sm.logged.Add(1)
		s.entry(category, fields).Log(level, msg)
		return
	}
	sm.sometimes.Do(func() {
		sm.logged.Add(1)
		s.entry(category, fields).Log(level, msg)
	})
}

func (s *SampledLogger) entry(category string, fields logrus.Fields) *logrus.Entry {
	e := s.base.WithField("category", category)
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return e
}

// Debug logs a sampled debug line.
func (s *SampledLogger) Debug(category, msg string, fields logrus.Fields) {
	s.Log(logrus.DebugLevel, category, msg, fields)
}

// Info logs a sampled info line.
func (s *SampledLogger) Info(category, msg string, fields logrus.Fields) {
	s.Log(logrus.InfoLevel, category, msg, fields)
}

// Warn logs a sampled warning.
func (s *SampledLogger) Warn(category, msg string, fields logrus.Fields) {
	s.Log(logrus.WarnLevel, category, msg, fields)
}

// Error always logs.
func (s *SampledLogger) Error(category, msg string, fields logrus.Fields) {
	s.Log(logrus.ErrorLevel, category, msg, fields)
}

// Stats returns statistics for every category seen so far.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sm := range s.samplers {
		total, logged := sm.total.Load(), sm.logged.Load()
		st := SamplerStats{Name: name, Total: total, Logged: logged, Dropped: total - logged}
		if total > 0 {
			st.Rate = float64(logged) / float64(total)
		}
		stats[name] = st
	}
	return stats
}
