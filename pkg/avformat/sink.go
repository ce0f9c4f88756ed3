package avformat

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Sink muxes packets into a container.
type Sink struct {
	mu      sync.Mutex
	eng     engine.FormatEngine
	uri     string
	format  string
	info    *media.MediaInfo
	ctx     engine.OutputContext
	streams map[int]int // input stream index -> output stream index
	tbs     map[int]avtime.Timebase
	logger  logrus.FieldLogger
}

// NewSink creates a sink writing the streams of info to uri. format may be
// empty to let the engine pick one from the uri.
func NewSink(eng engine.FormatEngine, uri, format string, info *media.MediaInfo, opts ...Option) (*Sink, error) {
	if eng == nil {
		return nil, averr.Config("sink.new", "no format engine for %s", uri)
	}
	if info == nil || len(info.Streams) == 0 {
		return nil, averr.InvalidArgument("sink.new", "no streams to write")
	}
	cfg := newConfig(opts)
	return &Sink{
		eng:    eng,
		uri:    uri,
		format: format,
		info:   info,
		logger: cfg.logger.WithFields(logrus.Fields{
			"component": "sink",
			"uri":       uri,
			"engine":    eng.Name(),
		}),
	}, nil
}

// Open creates one output stream per input stream and writes the header.
// A sink can be opened once.
func (s *Sink) Open(opts media.Options) error {
	const op = "sink.open"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return averr.InvalidState(op, "sink already open")
	}

	ctx, err := s.eng.OpenOutput(s.uri, s.format, opts)
	if err != nil {
		s.logger.WithError(err).Error("Failed to open output")
		return averr.Wrap(err, averr.KindIO, op, "cannot open "+s.uri)
	}

	streams := make(map[int]int, len(s.info.Streams))
	for _, st := range s.info.SortedStreams() {
		idx, err := ctx.AddStream(st)
		if err != nil {
			_ = ctx.Close()
			s.logger.WithError(err).WithField("stream_index", st.Index).Error("Failed to add output stream")
			return averr.Wrap(err, averr.KindConfig, op, "cannot add output stream")
		}
		streams[st.Index] = idx
	}

	if code := ctx.WriteHeader(opts); code < 0 {
		_ = ctx.Close()
		desc := s.eng.Describe(code)
		s.logger.WithFields(logrus.Fields{"code": int(code), "error": desc}).Error("Failed to write header")
		return averr.Engine(op, int(code), desc)
	}

	// Muxers may choose their own stream timebases while writing the header.
	tbs := make(map[int]avtime.Timebase, len(streams))
	for in, out := range streams {
		tb, ok := ctx.StreamTimebase(out)
		if !ok || tb.IsEmpty() {
			tb = s.info.Streams[in].Timebase
		}
		tbs[out] = tb
	}

	s.ctx = ctx
	s.streams = streams
	s.tbs = tbs
	s.logger.WithField("streams", len(streams)).Info("Sink opened")
	return nil
}

// Write rescales pkt into its output stream's timebase and hands it to the
// engine. The rescale is applied to pkt itself: after the call its
// timebase, timestamps and duration are those of the output stream.
func (s *Sink) Write(pkt *media.Buffer) (engine.Result, error) {
	const op = "sink.write"
	if pkt == nil || !pkt.IsPacket() {
		return engine.Result{}, averr.InvalidArgument(op, "source must be a non-nil packet")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return engine.Result{}, averr.InvalidState(op, "sink is not open")
	}
	out, ok := s.streams[pkt.StreamIndex()]
	if !ok {
		return engine.Result{}, averr.InvalidArgument(op, "no output stream for stream index %d", pkt.StreamIndex())
	}
	if pkt.Timebase().IsEmpty() {
		return engine.Result{}, averr.InvalidArgument(op, "packet has no timebase")
	}
	if err := pkt.RescaleTo(s.tbs[out]); err != nil {
		return engine.Result{}, err
	}

	raw := engine.RawPacket{
		Payload:     pkt.Payload(),
		StreamIndex: out,
		Pts:         pkt.Pts().Value(),
		Dts:         pkt.Dts().Value(),
		Duration:    pkt.Duration(),
		Flags:       pkt.Flags(),
		Pos:         pkt.Position(),
		SideData:    pkt.SideData(),
	}
	code := s.ctx.Write(&raw)
	res := engine.ResultOf(code)
	if res.Fatal() {
		s.logger.WithFields(pkt.LogFields()).WithFields(logrus.Fields{
			"code":  int(code),
			"error": s.eng.Describe(code),
		}).Error("Failed to write packet")
	}
	return res, nil
}

// StreamTimebase returns the timebase packets of input stream i are written
// in. It is only known once the sink is open.
func (s *Sink) StreamTimebase(i int) (avtime.Timebase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.streams[i]
	if !ok {
		return avtime.Timebase{}, false
	}
	return s.tbs[out], true
}

// Close writes the trailer and releases the output. Closing a closed sink is
// a no-op.
func (s *Sink) Close() error {
	const op = "sink.close"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return nil
	}

	var err error
	if code := s.ctx.WriteTrailer(); code < 0 {
		desc := s.eng.Describe(code)
		s.logger.WithFields(logrus.Fields{"code": int(code), "error": desc}).Error("Failed to write trailer")
		err = averr.Engine(op, int(code), desc)
	}
	if cerr := s.ctx.Close(); cerr != nil && err == nil {
		err = averr.Wrap(cerr, averr.KindIO, op, "failed to close "+s.uri)
	}
	s.ctx = nil
	s.streams = nil
	s.tbs = nil
	s.logger.Debug("Sink closed")
	return err
}
