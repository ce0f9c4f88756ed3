package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
)

const defaultKeyPrefix = "avwrap:jobs:"

var createScript = redis.NewScript(`
	local key = KEYS[1]
	local index_key = KEYS[2]
	local data = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local job_id = ARGV[3]
	local ok = redis.call('SET', key, data, 'PX', ttl, 'NX')
	if not ok then
		return 0
	end
	redis.call('SADD', index_key, job_id)
	return 1
`)

var listScript = redis.NewScript(`
	local index_key = KEYS[1]
	local prefix = ARGV[1]
	local ids = redis.call('SMEMBERS', index_key)
	local result = {}
	local stale = {}

	for i, id in ipairs(ids) do
		local job = redis.call('GET', prefix .. id)
		if job then
			table.insert(result, job)
		else
			table.insert(stale, id)
		end
	end

	for i, id in ipairs(stale) do
		redis.call('SREM', index_key, id)
	end

	return result
`)

// RedisRegistry stores jobs as JSON values under prefix+id, with an index
// set at prefix+"index". Every write refreshes the record's ttl.
type RedisRegistry struct {
	client *redis.Client
	logger logrus.FieldLogger
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry creates a new Redis-backed registry.
func NewRedisRegistry(client *redis.Client, logger logrus.FieldLogger, prefix string, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRegistry{
		client: client,
		logger: logger,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisRegistry) indexKey() string {
	return r.prefix + "index"
}

// Create adds a new job.
func (r *RedisRegistry) Create(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return averr.InvalidArgument("registry.Create", "job id is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	result, err := createScript.Run(ctx, r.client,
		[]string{r.prefix + job.ID, r.indexKey()},
		data, r.ttl.Milliseconds(), job.ID).Int()
	if err != nil {
		return averr.Wrap(err, averr.KindIO, "registry.Create", "failed to create job")
	}
	if result == 0 {
		return averr.InvalidState("registry.Create", "job %s already exists", job.ID)
	}

	r.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"mode":   job.Mode,
		"input":  job.Input,
	}).Debug("Job registered")
	return nil
}

// Update replaces an existing job and refreshes its ttl.
func (r *RedisRegistry) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return averr.InvalidArgument("registry.Update", "job id is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = r.client.SetArgs(ctx, r.prefix+job.ID, data, redis.SetArgs{Mode: "XX", TTL: r.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return averr.NotFound("registry.Update", "job "+job.ID)
	}
	if err != nil {
		return averr.Wrap(err, averr.KindIO, "registry.Update", "failed to update job")
	}
	return nil
}

// Get retrieves a job by id.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Job, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, averr.NotFound("registry.Get", "job "+id)
	}
	if err != nil {
		return nil, averr.Wrap(err, averr.KindIO, "registry.Get", "failed to get job")
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// List returns all live jobs and drops expired ids from the index.
func (r *RedisRegistry) List(ctx context.Context) ([]*Job, error) {
	res, err := listScript.Run(ctx, r.client, []string{r.indexKey()}, r.prefix).Result()
	if err != nil {
		return nil, averr.Wrap(err, averr.KindIO, "registry.List", "failed to list jobs")
	}

	values, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from list script", res)
	}

	jobs := make([]*Job, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Warn("Invalid data type in job list")
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal job")
			continue
		}
		jobs = append(jobs, &job)
	}
	sortJobs(jobs)
	return jobs, nil
}

// Delete removes a job.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, r.prefix+id).Result()
	if err != nil {
		return averr.Wrap(err, averr.KindIO, "registry.Delete", "failed to delete job")
	}
	if deleted == 0 {
		return averr.NotFound("registry.Delete", "job "+id)
	}
	if err := r.client.SRem(ctx, r.indexKey(), id).Err(); err != nil {
		r.logger.WithError(err).Warnf("Failed to remove job %s from index", id)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Client exposes the redis client for health checks.
func (r *RedisRegistry) Client() *redis.Client {
	return r.client
}
