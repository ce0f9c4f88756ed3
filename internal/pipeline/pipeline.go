// Package pipeline drives a source through optional decode and encode
// stages into a sink.
//
// A remux copies packets from the selected input streams to the output,
// letting the sink rescale timestamps into the output stream timebases. A
// transcode decodes every selected stream, rescales the frames into the
// encoder timebase and re-encodes them. At end of input the decoders are
// flushed first and their frames encoded, then the encoders are flushed.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/internal/logger"
	"github.com/zsiec/avwrap/internal/metrics"
	"github.com/zsiec/avwrap/internal/registry"
	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avformat"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

const (
	ModeRemux     = "remux"
	ModeTranscode = "transcode"
)

// Stats counts the work done by a run.
type Stats struct {
	PacketsRead    int64
	PacketsWritten int64
	BytesRead      int64
	BytesWritten   int64
	FramesDecoded  int64
	Dropped        int64
	// Position is the timestamp of the last packet read.
	Position time.Duration
}

// ProgressFunc receives the running totals. It is called from the pipeline
// goroutine.
type ProgressFunc func(Stats)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRegistry records the run as a job in reg.
func WithRegistry(reg registry.Registry) Option {
	return func(p *Pipeline) { p.jobs = reg }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithFormatEngine overrides the format engine named in the config.
func WithFormatEngine(e engine.FormatEngine) Option {
	return func(p *Pipeline) { p.formats = e }
}

// WithCodecEngine overrides the codec engine named in the config.
func WithCodecEngine(e engine.CodecEngine) Option {
	return func(p *Pipeline) { p.codecs = e }
}

// Pipeline runs one remux or transcode job.
type Pipeline struct {
	cfg      *config.Config
	formats  engine.FormatEngine
	codecs   engine.CodecEngine
	logger   logrus.FieldLogger
	sampled  *logger.SampledLogger
	jobs     registry.Registry
	progress ProgressFunc
	limiter  *rate.Limiter
	types    []media.ContentType
	// selected holds the streams chosen by openSource, by index.
	selected map[int]media.StreamInfo

	job        *registry.Job
	stats      Stats
	lastUpdate time.Time
}

// New prepares a pipeline for cfg.Pipeline. Engines not supplied through
// options are resolved from the config.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, averr.Wrap(err, averr.KindConfig, "pipeline.new", "invalid pipeline config")
	}
	pc := cfg.Pipeline
	if pc.Input == "" || pc.Output == "" {
		return nil, averr.InvalidArgument("pipeline.new", "input and output are required")
	}

	p := &Pipeline{cfg: cfg, logger: logger.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	p.types = pc.StreamTypes()

	var err error
	if p.formats == nil {
		if p.formats, err = FormatEngine(cfg, p.logger); err != nil {
			return nil, err
		}
	}
	if p.codecs == nil && pc.Mode == ModeTranscode {
		if p.codecs, err = CodecEngine(cfg, p.logger); err != nil {
			return nil, err
		}
	}
	if pc.ReadRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(pc.ReadRate), pc.ReadBurst)
	}
	return p, nil
}

// Run executes the job. Cancelling ctx stops the job between packets; the
// output is still finalized. A pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if p.job != nil {
		return p.stats, averr.InvalidState("pipeline.run", "job %s already ran", p.job.ID)
	}
	pc := p.cfg.Pipeline
	p.job = registry.NewJob(pc.Mode, pc.Input, pc.Output)
	p.logger = logger.WithJob(p.logger, p.job.ID, pc.Input).WithField("mode", pc.Mode)
	every := p.cfg.Logging.SampleRate
	if every < 1 {
		every = 100
	}
	p.sampled = logger.NewSampledLogger(p.logger, 5, every, time.Second)
	p.job.Start()
	p.publish(ctx, true)

	done := metrics.JobStarted(pc.Mode)
	p.logger.WithField("output", pc.Output).Info("Job started")

	var err error
	switch pc.Mode {
	case ModeTranscode:
		err = p.transcode(ctx)
	default:
		err = p.remux(ctx)
	}

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "cancelled"
		}
	}
	done(outcome)

	p.job.Finish(err)
	p.publish(context.WithoutCancel(ctx), true)

	entry := p.logger.WithFields(logrus.Fields{
		"packets_read":    p.stats.PacketsRead,
		"packets_written": p.stats.PacketsWritten,
		"dropped":         p.stats.Dropped,
	})
	if err != nil {
		entry.WithError(err).Error("Job failed")
	} else {
		entry.Info("Job completed")
	}
	return p.stats, err
}

// Job returns the record of the last run, nil before Run.
func (p *Pipeline) Job() *registry.Job {
	return p.job
}

// openSource opens the input and returns the streams selected by type.
func (p *Pipeline) openSource() (*avformat.Source, *media.MediaInfo, error) {
	src, err := avformat.NewSource(p.formats, p.cfg.Pipeline.Input, avformat.WithLogger(p.logger))
	if err != nil {
		return nil, nil, err
	}
	info, err := src.Open(inputOptions(p.cfg))
	if err != nil {
		return nil, nil, err
	}

	selected := &media.MediaInfo{
		URI:      info.URI,
		Format:   info.Format,
		Duration: info.Duration,
		Metadata: info.Metadata,
		Streams:  make(map[int]media.StreamInfo),
	}
	for idx, st := range info.Streams {
		if slices.Contains(p.types, st.Type) {
			selected.Streams[idx] = st
		}
	}
	if len(selected.Streams) == 0 {
		_ = src.Close()
		return nil, nil, averr.InvalidArgument("pipeline.open", "input %s has no streams of types %v", p.cfg.Pipeline.Input, p.cfg.Pipeline.Streams)
	}

	p.selected = selected.Streams

	p.logger.WithFields(logrus.Fields{
		"streams":  len(info.Streams),
		"selected": len(selected.Streams),
		"format":   info.Format,
	}).Info("Input opened")
	return src, selected, nil
}

func (p *Pipeline) openSink(info *media.MediaInfo) (*avformat.Sink, error) {
	pc := p.cfg.Pipeline
	sink, err := avformat.NewSink(p.formats, pc.Output, pc.OutputFormat, info, avformat.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	opts := media.Options(pc.OutputOptions).Merge(media.Options(pc.HeaderOptions))
	if err := sink.Open(opts); err != nil {
		return nil, err
	}
	return sink, nil
}

// next waits for the rate limiter and reads one packet. It reports false at
// end of input.
func (p *Pipeline) next(ctx context.Context, src *avformat.Source, pkt *media.Buffer) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if limit := p.cfg.Pipeline.MaxPackets; limit > 0 && p.stats.PacketsRead >= limit {
			p.logger.WithField("max_packets", limit).Info("Packet limit reached")
			return false, nil
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return false, err
			}
		}

		res, err := src.Read(pkt)
		if err != nil {
			return false, err
		}
		metrics.RecordResult(metrics.StageRead, res)
		switch {
		case res.EndOfStream():
			return false, nil
		case res.Retry():
			p.sampled.Debug(logger.CategoryRetry, "Source asked to retry", nil)
			continue
		case res.Fatal():
			return false, p.engineError("pipeline.read", res.Code)
		}

		// Stream selection follows the probed stream types; the per-packet
		// classification may disagree with them.
		if _, ok := p.selected[pkt.StreamIndex()]; !ok {
			p.drop(pkt, "unselected")
			continue
		}

		p.stats.PacketsRead++
		p.stats.BytesRead += int64(pkt.Size())
		if ts := pkt.Pts(); !ts.IsEmpty() {
			p.stats.Position = ts.Duration()
		}
		metrics.RecordPacket(metrics.StageRead, pkt.ContentType(), pkt.Size())
		p.sampled.Debug(logger.CategoryPacket, "Packet read", pkt.LogFields())
		return true, nil
	}
}

func (p *Pipeline) write(ctx context.Context, sink *avformat.Sink, pkt *media.Buffer) error {
	size := pkt.Size()
	res, err := sink.Write(pkt)
	if err != nil {
		return err
	}
	metrics.RecordResult(metrics.StageWrite, res)
	switch {
	case res.OK():
	case res.Retry():
		p.drop(pkt, "sink_retry")
		return nil
	default:
		return p.engineError("pipeline.write", res.Code)
	}

	p.stats.PacketsWritten++
	p.stats.BytesWritten += int64(size)
	metrics.RecordPacket(metrics.StageWrite, pkt.ContentType(), size)
	p.report(ctx)
	return nil
}

func (p *Pipeline) drop(pkt *media.Buffer, reason string) {
	p.stats.Dropped++
	metrics.RecordDrop(reason)
	p.sampled.Debug(logger.CategoryDrop, "Packet dropped", logrus.Fields{
		"reason":       reason,
		"stream_index": pkt.StreamIndex(),
	})
	pkt.Clear()
}

func (p *Pipeline) engineError(op string, code engine.Code) error {
	return averr.Engine(op, int(code), p.formats.Describe(code))
}

// report calls the progress callback and refreshes the job record at most
// once per second.
func (p *Pipeline) report(ctx context.Context) {
	if p.progress != nil {
		p.progress(p.stats)
	}
	if time.Since(p.lastUpdate) >= time.Second {
		p.publish(ctx, false)
	}
}

// publish copies the stats into the job record and stores it. Registry
// failures are logged, never fatal to the job.
func (p *Pipeline) publish(ctx context.Context, create bool) {
	p.lastUpdate = time.Now()
	if p.jobs == nil {
		return
	}
	p.job.PacketsRead = p.stats.PacketsRead
	p.job.PacketsWritten = p.stats.PacketsWritten
	p.job.BytesRead = p.stats.BytesRead
	p.job.BytesWritten = p.stats.BytesWritten
	p.job.FramesDecoded = p.stats.FramesDecoded
	p.job.Dropped = p.stats.Dropped
	p.job.UpdatedAt = p.lastUpdate

	var err error
	if create && p.job.Status == registry.StatusRunning {
		err = p.jobs.Create(ctx, p.job)
	} else {
		err = p.jobs.Update(ctx, p.job)
	}
	if err != nil {
		p.logger.WithError(err).Warn("Failed to update job registry")
	}
}
