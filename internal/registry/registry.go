// Package registry keeps track of pipeline jobs so the status server can
// report on runs started by the CLI or by other processes.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/pkg/averr"
)

const defaultTTL = 24 * time.Hour

// Registry defines the job registry operations.
type Registry interface {
	// Create adds a new job. It fails if the id is already taken.
	Create(ctx context.Context, job *Job) error

	// Update replaces an existing job record.
	Update(ctx context.Context, job *Job) error

	// Get retrieves a job by id.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns all known jobs, oldest first.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the registry.
	Close() error
}

// New builds the registry selected by cfg.Registry.Backend.
func New(cfg *config.Config, logger logrus.FieldLogger) (Registry, error) {
	switch cfg.Registry.Backend {
	case "", "memory":
		return NewMemoryRegistry(cfg.Registry.TTL), nil
	case "redis":
		client := NewRedisClient(&cfg.Redis)
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, averr.Wrap(err, averr.KindIO, "registry.New", "failed to connect to redis")
		}
		return NewRedisRegistry(client, logger, cfg.Registry.KeyPrefix, cfg.Registry.TTL), nil
	default:
		return nil, averr.Config("registry.New", "unknown registry backend %q", cfg.Registry.Backend)
	}
}

// NewRedisClient connects to the first configured redis address.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	addr := "localhost:6379"
	if len(cfg.Addresses) > 0 {
		addr = cfg.Addresses[0]
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// MemoryRegistry is an in-process registry. Finished jobs are dropped once
// they are older than the ttl.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryRegistry{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryRegistry) Create(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return averr.InvalidArgument("registry.Create", "job id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	if _, exists := m.jobs[job.ID]; exists {
		return averr.InvalidState("registry.Create", "job %s already exists", job.ID)
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryRegistry) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return averr.InvalidArgument("registry.Update", "job id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; !exists {
		return averr.NotFound("registry.Update", "job "+job.ID)
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryRegistry) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[id]
	if !exists || m.expired(job) {
		return nil, averr.NotFound("registry.Get", "job "+id)
	}
	return job.Clone(), nil
}

func (m *MemoryRegistry) List(ctx context.Context) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Clone())
	}
	sortJobs(jobs)
	return jobs, nil
}

func (m *MemoryRegistry) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[id]; !exists {
		return averr.NotFound("registry.Delete", "job "+id)
	}
	delete(m.jobs, id)
	return nil
}

func (m *MemoryRegistry) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]*Job)
	return nil
}

func (m *MemoryRegistry) expired(job *Job) bool {
	return job.FinishedAt != nil && m.now().Sub(*job.FinishedAt) > m.ttl
}

// prune must be called with the write lock held.
func (m *MemoryRegistry) prune() {
	for id, job := range m.jobs {
		if m.expired(job) {
			delete(m.jobs, id)
		}
	}
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
}
