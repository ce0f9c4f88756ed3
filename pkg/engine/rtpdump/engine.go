// Package rtpdump is a pure-Go format engine for rtpdump recordings, the
// "#!rtpplay1.0" files written by rtpdump and read by rtpplay and
// Wireshark. Every SSRC in a recording is one stream whose timebase is the
// RTP clock of its payload type.
//
// Input and output can be local files, TCP connections or SRT connections.
//
// Input options:
//
//	rtpmap         "96=h264/90000,97=opus/48000/2" for dynamic payload types
//	probe_packets  RTP packets read ahead to discover streams (default 64)
//	timeout_ms     connect timeout for tcp:// and srt://
//	latency_ms     SRT receiver latency
//	passphrase     SRT passphrase
//
// Output options:
//
//	ssrc    first SSRC; streams use consecutive values (default random)
//	source  recorded source address, "10.0.0.1/5004"
package rtpdump

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Name is the registered engine and format name.
const Name = "rtpdump"

const defaultProbePackets = 64

// Config configures an Engine.
type Config struct {
	Logger logrus.FieldLogger
}

// Engine implements engine.FormatEngine.
type Engine struct {
	logger logrus.FieldLogger
}

// New creates an rtpdump engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Engine{logger: logger.WithField("engine", Name)}
}

func init() {
	engine.RegisterFormat(New(Config{}))
}

// Name implements engine.FormatEngine.
func (e *Engine) Name() string { return Name }

// Formats implements engine.FormatEngine.
func (e *Engine) Formats() []string { return []string{Name} }

// Describe implements engine.FormatEngine.
func (e *Engine) Describe(code engine.Code) string {
	return code.String()
}

// OpenInput implements engine.FormatEngine.
func (e *Engine) OpenInput(uri string, opts media.Options) (engine.InputContext, error) {
	rtpmap, err := parseRTPMap(opts.Text("rtpmap", ""))
	if err != nil {
		return nil, err
	}
	probe := int(opts.Int("probe_packets", defaultProbePackets))
	if probe <= 0 {
		return nil, averr.InvalidArgument("rtpdump.open_input", "probe_packets must be positive, got %d", probe)
	}

	conn, err := dial(uri, false, opts)
	if err != nil {
		return nil, err
	}
	return newDemuxer(uri, conn, rtpmap, probe, e.logger.WithField("uri", uri)), nil
}

// OpenOutput implements engine.FormatEngine.
func (e *Engine) OpenOutput(uri, format string, opts media.Options) (engine.OutputContext, error) {
	if format != "" && format != Name {
		return nil, averr.Config("rtpdump.open_output", "unsupported format %q", format)
	}
	ssrc := uint32(opts.Int("ssrc", int64(uuid.New().ID())))

	conn, err := dial(uri, true, opts)
	if err != nil {
		return nil, err
	}
	return newMuxer(uri, conn, ssrc, e.logger.WithField("uri", uri)), nil
}
