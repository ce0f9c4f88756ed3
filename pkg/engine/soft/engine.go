// Package soft is a pure-Go codec engine. Its codecs pass payloads through
// untouched and emulate the latency of real codecs: each context holds back
// a configurable number of units and releases them in presentation order,
// the way a decoder with B-frame reordering does.
//
// Options understood by OpenDecoder and OpenEncoder:
//
//	delay  units held back before the first output (default from Config)
//	gop    encoder key frame interval in frames (default 1, every frame)
package soft

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Name is the registered engine name.
const Name = "soft"

// DefaultCodecs lists the codecs the registered engine accepts.
var DefaultCodecs = []string{
	"aac", "av1", "h264", "hevc", "jpegxs", "l16", "opus",
	"pcm_alaw", "pcm_mulaw", "pcm_s16be", "pcm_s16le", "rawvideo", "vp8", "vp9",
}

// Config configures an Engine.
type Config struct {
	// Codecs the engine accepts. Empty means DefaultCodecs.
	Codecs []string
	// DecoderDelay and EncoderDelay are the default lookahead depths.
	DecoderDelay int
	EncoderDelay int
	Logger       logrus.FieldLogger
}

// Engine implements engine.CodecEngine.
type Engine struct {
	cfg    Config
	codecs map[string]struct{}
}

// New creates a soft engine.
func New(cfg Config) *Engine {
	if len(cfg.Codecs) == 0 {
		cfg.Codecs = DefaultCodecs
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		cfg.Logger = l
	}
	e := &Engine{cfg: cfg, codecs: make(map[string]struct{}, len(cfg.Codecs))}
	for _, c := range cfg.Codecs {
		e.codecs[c] = struct{}{}
	}
	return e
}

func init() {
	engine.RegisterCodec(New(Config{}))
}

// Name implements engine.CodecEngine.
func (e *Engine) Name() string { return Name }

// Codecs implements engine.CodecEngine.
func (e *Engine) Codecs() []string {
	out := slices.Clone(e.cfg.Codecs)
	slices.Sort(out)
	return out
}

// Describe implements engine.CodecEngine.
func (e *Engine) Describe(code engine.Code) string {
	return code.String()
}

// OpenDecoder implements engine.CodecEngine.
func (e *Engine) OpenDecoder(info media.StreamInfo, opts media.Options) (engine.CodecContext, error) {
	if _, ok := e.codecs[info.CodecName]; !ok {
		return nil, averr.Engine("soft.open_decoder", int(engine.DecoderNotFound),
			e.Describe(engine.DecoderNotFound)+": "+info.CodecName)
	}
	return e.open(info, opts, false)
}

// OpenEncoder implements engine.CodecEngine.
func (e *Engine) OpenEncoder(info media.StreamInfo, opts media.Options) (engine.CodecContext, error) {
	if _, ok := e.codecs[info.CodecName]; !ok {
		return nil, averr.Engine("soft.open_encoder", int(engine.EncoderNotFound),
			e.Describe(engine.EncoderNotFound)+": "+info.CodecName)
	}
	return e.open(info, opts, true)
}

func (e *Engine) open(info media.StreamInfo, opts media.Options, encode bool) (engine.CodecContext, error) {
	delay := e.cfg.DecoderDelay
	if encode {
		delay = e.cfg.EncoderDelay
	}
	delay = int(opts.Int("delay", int64(delay)))
	if delay < 0 {
		return nil, averr.InvalidArgument("soft.open", "delay cannot be negative, got %d", delay)
	}
	gop := opts.Int("gop", 1)
	if gop < 1 {
		return nil, averr.InvalidArgument("soft.open", "gop must be positive, got %d", gop)
	}

	e.cfg.Logger.WithFields(logrus.Fields{
		"codec":  info.CodecName,
		"encode": encode,
		"delay":  delay,
	}).Debug("Opened soft codec")

	return newContext(info, delay, int(gop), encode), nil
}
