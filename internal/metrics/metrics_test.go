package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

func TestRecordPacket(t *testing.T) {
	initialPackets := testutil.ToFloat64(packetsTotal.WithLabelValues(StageRead, "video"))
	initialBytes := testutil.ToFloat64(bytesTotal.WithLabelValues(StageRead, "video"))

	RecordPacket(StageRead, media.ContentVideo, 1200)
	RecordPacket(StageRead, media.ContentVideo, 800)

	assert.Equal(t, initialPackets+2, testutil.ToFloat64(packetsTotal.WithLabelValues(StageRead, "video")))
	assert.Equal(t, initialBytes+2000, testutil.ToFloat64(bytesTotal.WithLabelValues(StageRead, "video")))
}

func TestRecordResult(t *testing.T) {
	tests := []struct {
		res    engine.Result
		status string
	}{
		{engine.ResultOK, "ok"},
		{engine.ResultRetry, "retry"},
		{engine.ResultEndOfStream, "end_of_stream"},
		{engine.Fatal(engine.InvalidData), "fatal"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			before := testutil.ToFloat64(resultsTotal.WithLabelValues(StageDecode, tt.status))
			RecordResult(StageDecode, tt.res)
			assert.Equal(t, before+1, testutil.ToFloat64(resultsTotal.WithLabelValues(StageDecode, tt.status)))
		})
	}
}

func TestRecordRescaleAndDrop(t *testing.T) {
	before := testutil.ToFloat64(rescalesTotal)
	RecordRescale()
	assert.Equal(t, before+1, testutil.ToFloat64(rescalesTotal))

	beforeDrop := testutil.ToFloat64(droppedTotal.WithLabelValues("unmapped_stream"))
	RecordDrop("unmapped_stream")
	assert.Equal(t, beforeDrop+1, testutil.ToFloat64(droppedTotal.WithLabelValues("unmapped_stream")))
}

func TestJobStarted(t *testing.T) {
	active := testutil.ToFloat64(jobsActive)
	done := JobStarted("remux")
	assert.Equal(t, active+1, testutil.ToFloat64(jobsActive))

	done("completed")
	assert.Equal(t, active, testutil.ToFloat64(jobsActive))

	m := &dto.Metric{}
	h, err := jobDuration.GetMetricWithLabelValues("remux", "completed")
	require.NoError(t, err)
	require.NoError(t, h.(prometheus.Histogram).Write(m))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestPayloadCollectors(t *testing.T) {
	p := media.NewPayload([]byte("x"), nil)
	defer p.Release()

	assert.GreaterOrEqual(t, testutil.ToFloat64(livePayloads), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(allocatedPayloads), 1.0)

	reg := prometheus.NewRegistry()
	RegisterPayloadCollectors(reg)
	RegisterPayloadCollectors(reg)

	n, err := testutil.GatherAndCount(reg, "avwrap_payloads_live", "avwrap_payloads_allocated_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
