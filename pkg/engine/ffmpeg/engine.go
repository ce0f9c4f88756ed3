//go:build ffmpeg

// Package ffmpeg is the FFmpeg engine, a thin layer over libavformat and
// libavcodec through go-astiav. It is compiled only with the ffmpeg build
// tag and needs the FFmpeg development libraries.
//
// FFmpeg error numbers are used as engine codes as-is, so Describe is
// av_strerror.
package ffmpeg

import (
	"errors"
	"slices"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Name is the registered engine name.
const Name = "ffmpeg"

// Config configures an Engine.
type Config struct {
	Logger logrus.FieldLogger
	// LogLevel is the libav log level forwarded to Logger.
	LogLevel astiav.LogLevel
}

// Engine implements both engine.CodecEngine and engine.FormatEngine.
type Engine struct {
	logger logrus.FieldLogger
}

// New creates an FFmpeg engine and routes libav logging to cfg.Logger.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	logger = logger.WithField("engine", Name)

	if cfg.LogLevel == 0 {
		cfg.LogLevel = astiav.LogLevelWarning
	}
	astiav.SetLogLevel(cfg.LogLevel)
	astiav.SetLogCallback(func(_ astiav.Classer, l astiav.LogLevel, _, msg string) {
		msg = strings.TrimSpace(msg)
		switch {
		case l <= astiav.LogLevelError:
			logger.Error(msg)
		case l <= astiav.LogLevelWarning:
			logger.Warn(msg)
		case l <= astiav.LogLevelInfo:
			logger.Info(msg)
		default:
			logger.Debug(msg)
		}
	})
	return &Engine{logger: logger}
}

func init() {
	e := New(Config{})
	engine.RegisterCodec(e)
	engine.RegisterFormat(e)
}

// Name implements engine.CodecEngine and engine.FormatEngine.
func (e *Engine) Name() string { return Name }

// Describe returns FFmpeg's message for code.
func (e *Engine) Describe(code engine.Code) string {
	if code == engine.OK {
		return code.String()
	}
	return astiav.Error(code).Error()
}

// Codecs lists commonly built codecs that this libavcodec can decode.
func (e *Engine) Codecs() []string {
	var out []string
	for _, name := range probeCodecs {
		if astiav.FindDecoderByName(name) != nil {
			out = append(out, name)
		}
	}
	return out
}

// Formats lists commonly built muxers available in this libavformat.
func (e *Engine) Formats() []string {
	var out []string
	for _, name := range probeFormats {
		if astiav.FindOutputFormat(name) != nil {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

var probeCodecs = []string{
	"aac", "ac3", "av1", "flac", "h264", "hevc", "mjpeg", "mp3", "mpeg2video",
	"opus", "pcm_alaw", "pcm_mulaw", "pcm_s16le", "rawvideo", "vp8", "vp9",
}

var probeFormats = []string{
	"flv", "matroska", "mov", "mp4", "mpegts", "null", "ogg", "rtp", "wav", "webm",
}

// codeOf maps an astiav error onto an engine code.
func codeOf(err error) engine.Code {
	if err == nil {
		return engine.OK
	}
	var ae astiav.Error
	if errors.As(err, &ae) {
		return engine.Code(ae)
	}
	return engine.Bug
}

func dictionary(opts media.Options) *astiav.Dictionary {
	if len(opts) == 0 {
		return nil
	}
	d := astiav.NewDictionary()
	for _, k := range opts.Keys() {
		_ = d.Set(k, opts[k], astiav.NewDictionaryFlags())
	}
	return d
}

func freeDictionary(d *astiav.Dictionary) {
	if d != nil {
		d.Free()
	}
}
