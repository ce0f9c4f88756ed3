package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisRegistry) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	return mr, client, NewRedisRegistry(client, logger, "test:jobs:", 5*time.Minute)
}

func TestRedisRegistry_Create(t *testing.T) {
	mr, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	job := NewJob("remux", "in.rtpdump", "out.rtpdump")
	require.NoError(t, reg.Create(ctx, job))

	assert.True(t, mr.Exists("test:jobs:"+job.ID))
	members, err := mr.Members("test:jobs:index")
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, members)

	ttl := mr.TTL("test:jobs:" + job.ID)
	assert.Equal(t, 5*time.Minute, ttl)

	err = reg.Create(ctx, job)
	assert.True(t, errors.Is(err, averr.ErrInvalidState))
}

func TestRedisRegistry_CreateRequiresID(t *testing.T) {
	_, client, reg := setupTestRedis(t)
	defer client.Close()

	err := reg.Create(context.Background(), &Job{})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
}

func TestRedisRegistry_GetAndUpdate(t *testing.T) {
	_, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	job := NewJob("transcode", "in.rtpdump", "out.rtpdump")
	require.NoError(t, reg.Create(ctx, job))

	job.Start()
	job.PacketsRead = 42
	job.BytesWritten = 1024
	require.NoError(t, reg.Update(ctx, job))

	got, err := reg.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, int64(42), got.PacketsRead)
	assert.Equal(t, int64(1024), got.BytesWritten)
	assert.Equal(t, "transcode", got.Mode)

	job.Finish(errors.New("broken pipe"))
	require.NoError(t, reg.Update(ctx, job))

	got, err = reg.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "broken pipe", got.Error)
	require.NotNil(t, got.FinishedAt)
}

func TestRedisRegistry_NotFound(t *testing.T) {
	_, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	_, err := reg.Get(ctx, "missing")
	assert.True(t, errors.Is(err, averr.ErrNotFound))

	err = reg.Update(ctx, &Job{ID: "missing"})
	assert.True(t, errors.Is(err, averr.ErrNotFound))

	err = reg.Delete(ctx, "missing")
	assert.True(t, errors.Is(err, averr.ErrNotFound))
}

func TestRedisRegistry_Delete(t *testing.T) {
	mr, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	job := NewJob("remux", "a", "b")
	require.NoError(t, reg.Create(ctx, job))
	require.NoError(t, reg.Delete(ctx, job.ID))

	assert.False(t, mr.Exists("test:jobs:"+job.ID))
	members, _ := mr.Members("test:jobs:index")
	assert.Empty(t, members)
}

func TestRedisRegistry_List(t *testing.T) {
	_, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	base := time.Now()
	var ids []string
	for i := 0; i < 3; i++ {
		job := NewJob("remux", "in", "out")
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, reg.Create(ctx, job))
		ids = append(ids, job.ID)
	}

	jobs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for i, job := range jobs {
		assert.Equal(t, ids[i], job.ID)
	}
}

func TestRedisRegistry_ListDropsExpired(t *testing.T) {
	mr, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	keep := NewJob("remux", "in", "out")
	require.NoError(t, reg.Create(ctx, keep))

	gone := NewJob("remux", "in", "out")
	require.NoError(t, reg.Create(ctx, gone))
	mr.Del("test:jobs:" + gone.ID)

	jobs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, keep.ID, jobs[0].ID)

	members, _ := mr.Members("test:jobs:index")
	assert.Equal(t, []string{keep.ID}, members)
}

func TestRedisRegistry_TTLExpiry(t *testing.T) {
	mr, client, reg := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	job := NewJob("remux", "in", "out")
	require.NoError(t, reg.Create(ctx, job))

	mr.FastForward(6 * time.Minute)

	_, err := reg.Get(ctx, job.ID)
	assert.True(t, errors.Is(err, averr.ErrNotFound))
}

func TestRedisRegistry_Defaults(t *testing.T) {
	reg := NewRedisRegistry(nil, logrus.New(), "", 0)
	assert.Equal(t, defaultKeyPrefix, reg.prefix)
	assert.Equal(t, defaultTTL, reg.ttl)
}
