// Package health runs the checks behind the status server's /health and
// /ready endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ErrDegraded marks a check failure that leaves the process usable.
var ErrDegraded = errors.New("degraded")

// Degraded returns an error that reports the component as degraded rather
// than down.
func Degraded(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDegraded, fmt.Sprintf(format, args...))
}

// Check represents a health check result.
type Check struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"-"`
	DurationMS  float64                `json:"duration_ms"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Checker is the interface that health checkers must implement. A nil error
// is healthy, an error wrapping ErrDegraded is degraded, anything else is
// down.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Describer is implemented by checkers that attach details to their result.
type Describer interface {
	Details() map[string]interface{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCheckTimeout bounds each check. The default is five seconds.
func WithCheckTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// Manager runs the registered checkers and keeps their last results.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	results  map[string]*Check
	logger   logrus.FieldLogger
	timeout  time.Duration
}

// NewManager creates a new health check manager.
func NewManager(logger logrus.FieldLogger, opts ...ManagerOption) *Manager {
	m := &Manager{
		results: make(map[string]*Check),
		logger:  logger.WithField("component", "health"),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a checker.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
	m.logger.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// RunChecks runs every checker concurrently and returns the fresh results
// keyed by checker name.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	checks := make([]*Check, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checks[i] = m.run(ctx, c)
		}()
	}
	wg.Wait()

	results := make(map[string]*Check, len(checks))
	m.mu.Lock()
	for _, check := range checks {
		results[check.Name] = check
		m.results[check.Name] = check
	}
	m.mu.Unlock()
	return results
}

func (m *Manager) run(ctx context.Context, c Checker) *Check {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	duration := time.Since(start)

	check := &Check{
		Name:        c.Name(),
		Status:      StatusOK,
		LastChecked: time.Now(),
		Duration:    duration,
		DurationMS:  float64(duration.Milliseconds()),
	}
	if d, ok := c.(Describer); ok {
		check.Details = d.Details()
	}

	log := m.logger.WithFields(logrus.Fields{"checker": check.Name, "duration": duration})
	switch {
	case err == nil:
		log.Debug("Health check passed")
	case errors.Is(err, ErrDegraded):
		check.Status = StatusDegraded
		check.Message = err.Error()
		log.WithError(err).Warn("Health check degraded")
	case errors.Is(err, context.DeadlineExceeded):
		check.Status = StatusDown
		check.Message = "Health check timed out"
		log.Error(check.Message)
	default:
		check.Status = StatusDown
		check.Message = err.Error()
		log.WithError(err).Error("Health check failed")
	}
	return check
}

// GetResults returns copies of the latest results.
func (m *Manager) GetResults() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		c := *v
		results[k] = &c
	}
	return results
}

// GetOverallStatus returns the worst status of the latest results. Before
// any check has run the process reports down.
func (m *Manager) GetOverallStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}
	overall := StatusOK
	for _, check := range m.results {
		if check.Status.rank() > overall.rank() {
			overall = check.Status
		}
	}
	return overall
}

// StartPeriodicChecks runs the checks now and then every interval until ctx
// is done.
func (m *Manager) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(ctx)
	for {
		select {
		case <-ticker.C:
			m.RunChecks(ctx)
		case <-ctx.Done():
			m.logger.Debug("Stopping periodic health checks")
			return
		}
	}
}
