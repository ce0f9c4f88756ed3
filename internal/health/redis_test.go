package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	require.NoError(t, checker.Check(context.Background()))

	details := checker.Details()
	assert.Contains(t, details, "total_conns")
	assert.Equal(t, uint32(0), details["timeouts"])

	mr.Close()
	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.NotErrorIs(t, err, ErrDegraded)
}

func TestRedisChecker_InManager(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := NewManager(logrus.New())
	manager.Register(NewRedisChecker(client))

	check := manager.RunChecks(context.Background())["redis"]
	require.NotNil(t, check)
	assert.Equal(t, StatusOK, check.Status)
	assert.Contains(t, check.Details, "hits")
}
