// Package avformat reads packets out of containers and writes them back,
// keeping every packet tagged with the timebase of the stream it belongs to.
//
// Source and Sink serialize their engine I/O with one lock per instance.
// The lock covers a single call; sequences of calls are not atomic.
package avformat

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Source demuxes a container.
type Source struct {
	mu     sync.Mutex
	eng    engine.FormatEngine
	uri    string
	ctx    engine.InputContext
	info   *media.MediaInfo
	types  map[int]media.ContentType
	raw    engine.RawPacket
	logger logrus.FieldLogger
}

// NewSource creates a source for uri. Nothing is opened until Open.
func NewSource(eng engine.FormatEngine, uri string, opts ...Option) (*Source, error) {
	if eng == nil {
		return nil, averr.Config("source.new", "no format engine for %s", uri)
	}
	cfg := newConfig(opts)
	return &Source{
		eng: eng,
		uri: uri,
		logger: cfg.logger.WithFields(logrus.Fields{
			"component": "source",
			"uri":       uri,
			"engine":    eng.Name(),
		}),
	}, nil
}

// Open opens the input and probes its streams. Opening an already open
// source logs a warning and returns the existing description.
func (s *Source) Open(opts media.Options) (*media.MediaInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		s.logger.Warn("Source already open")
		return s.info, nil
	}

	ctx, err := s.eng.OpenInput(s.uri, opts)
	if err != nil {
		s.logger.WithError(err).Error("Failed to open input")
		return nil, averr.Wrap(err, averr.KindIO, "source.open", "cannot open "+s.uri)
	}

	info, err := ctx.Probe()
	if err != nil {
		_ = ctx.Close()
		s.logger.WithError(err).Error("Failed to probe input")
		return nil, averr.Wrap(err, averr.KindIO, "source.open", "cannot find stream info in "+s.uri)
	}
	if info.URI == "" {
		info.URI = s.uri
	}

	s.ctx = ctx
	s.info = info
	s.types = make(map[int]media.ContentType, len(info.Streams))

	s.logger.WithFields(logrus.Fields{
		"format":  info.Format,
		"streams": len(info.Streams),
	}).Info("Source opened")
	return info, nil
}

// Read clears pkt and fills it with the next packet of the input, tagged with
// its stream's timebase and content type. On any non-OK result pkt stays
// cleared. EndOfStream marks the end of the input; after a Fatal result the
// source remains open and the read may be retried.
func (s *Source) Read(pkt *media.Buffer) (engine.Result, error) {
	const op = "source.read"
	if pkt == nil || !pkt.IsPacket() {
		return engine.Result{}, averr.InvalidArgument(op, "destination must be a non-nil packet")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return engine.Result{}, averr.InvalidState(op, "source is not open")
	}

	pkt.Clear()
	s.raw.Reset()
	code := s.ctx.Read(&s.raw)
	if code < 0 {
		res := engine.ResultOf(code)
		switch {
		case res.EndOfStream():
			s.logger.Debug("End of input")
		case res.Fatal():
			s.logger.WithFields(logrus.Fields{
				"code":  int(code),
				"error": s.eng.Describe(code),
			}).Error("Failed to read packet")
		}
		return res, nil
	}

	stream, ok := s.info.Streams[s.raw.StreamIndex]
	if !ok {
		if s.raw.Payload != nil {
			s.raw.Payload.Release()
		}
		s.logger.WithField("stream_index", s.raw.StreamIndex).Error("Packet for unknown stream")
		return engine.Fatal(engine.StreamNotFound), nil
	}

	pkt.AttachPayload(s.raw.Payload)
	pkt.SetTimebase(stream.Timebase)
	pkt.SetNativeTimestamps(s.raw.Pts, s.raw.Dts)
	if s.raw.Duration > 0 {
		_ = pkt.SetDuration(s.raw.Duration)
	}
	_ = pkt.SetStreamIndex(s.raw.StreamIndex)
	pkt.SetFlags(s.raw.Flags)
	pkt.SetPosition(s.raw.Pos)
	for _, sd := range s.raw.SideData {
		pkt.AddSideData(sd.Type, sd.Data)
	}
	pkt.SetContentType(s.classify(s.raw.StreamIndex))
	s.raw.Payload = nil
	return engine.ResultOK, nil
}

// classify asks the engine which type stream idx is. The first type in
// media.ProbeOrder the engine confirms wins.
func (s *Source) classify(idx int) media.ContentType {
	if t, ok := s.types[idx]; ok {
		return t
	}
	t := media.ContentNone
	for _, candidate := range media.ProbeOrder {
		if s.ctx.BestStream(candidate, idx) == idx {
			t = candidate
			break
		}
	}
	s.types[idx] = t
	return t
}

// MediaInfo returns the description produced by Open, nil before.
func (s *Source) MediaInfo() *media.MediaInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Close releases the input. Closing a closed source is a no-op.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return nil
	}
	err := s.ctx.Close()
	s.ctx = nil
	s.info = nil
	s.types = nil
	if err != nil {
		return averr.Wrap(err, averr.KindIO, "source.close", "failed to close "+s.uri)
	}
	s.logger.Debug("Source closed")
	return nil
}
