package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
	_ "github.com/zsiec/avwrap/pkg/engine/rtpdump"
	_ "github.com/zsiec/avwrap/pkg/engine/soft"
	"github.com/zsiec/avwrap/pkg/media"
)

func TestEngineChecker(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		checker *EngineChecker
		wantErr string
	}{
		{name: "registered", checker: NewEngineChecker("soft", "rtpdump", "h264", "opus")},
		{name: "empty codec ignored", checker: NewEngineChecker("soft", "rtpdump", "")},
		{name: "nothing to check", checker: NewEngineChecker("", "")},
		{name: "missing codec", checker: NewEngineChecker("soft", "", "prores"), wantErr: "missing codecs: [prores]"},
		{name: "unknown codec engine", checker: NewEngineChecker("nope", ""), wantErr: "not found"},
		{name: "unknown format engine", checker: NewEngineChecker("", "nope"), wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checker.Check(ctx)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	err := NewEngineChecker("nope", "").Check(ctx)
	assert.ErrorIs(t, err, averr.ErrNotFound)

	details := NewEngineChecker("soft", "rtpdump").Details()
	assert.Contains(t, details["codec_engines"], "soft")
	assert.Contains(t, details["format_engines"], "rtpdump")
}

func TestPayloadChecker(t *testing.T) {
	ctx := context.Background()
	a, errA := media.AllocPayload(16)
	require.NoError(t, errA)
	defer a.Release()
	b, errB := media.AllocPayload(16)
	require.NoError(t, errB)
	defer b.Release()

	assert.NoError(t, NewPayloadChecker(0).Check(ctx))
	assert.NoError(t, NewPayloadChecker(1<<30).Check(ctx))

	err := NewPayloadChecker(1).Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit 1")
	assert.ErrorIs(t, err, ErrDegraded)

	details := NewPayloadChecker(0).Details()
	assert.GreaterOrEqual(t, details["live"], int64(2))
	assert.Contains(t, details, "allocated")
}
