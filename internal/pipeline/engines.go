package pipeline

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/engine/rtpdump"
	"github.com/zsiec/avwrap/pkg/engine/soft"
	"github.com/zsiec/avwrap/pkg/media"
)

// FormatEngine returns the format engine named by the pipeline config. The
// built-in rtpdump engine is constructed with logger; other names are looked
// up in the engine registry.
func FormatEngine(cfg *config.Config, logger logrus.FieldLogger) (engine.FormatEngine, error) {
	if cfg.Pipeline.FormatEngine == rtpdump.Name {
		return rtpdump.New(rtpdump.Config{Logger: logger}), nil
	}
	return engine.Format(cfg.Pipeline.FormatEngine)
}

// CodecEngine returns the codec engine named by the pipeline config. The
// built-in soft engine is constructed from the engines.soft section.
func CodecEngine(cfg *config.Config, logger logrus.FieldLogger) (engine.CodecEngine, error) {
	if cfg.Pipeline.CodecEngine == soft.Name {
		return soft.New(soft.Config{
			Codecs:       cfg.Engines.Soft.Codecs,
			DecoderDelay: cfg.Engines.Soft.DecoderDelay,
			EncoderDelay: cfg.Engines.Soft.EncoderDelay,
			Logger:       logger,
		}), nil
	}
	return engine.Codec(cfg.Pipeline.CodecEngine)
}

// inputOptions merges the rtpdump defaults under the configured input
// options.
func inputOptions(cfg *config.Config) media.Options {
	opts := media.Options{}
	if cfg.Pipeline.FormatEngine == rtpdump.Name {
		if cfg.Engines.RTPDump.RTPMap != "" {
			opts["rtpmap"] = cfg.Engines.RTPDump.RTPMap
		}
		if cfg.Engines.RTPDump.ProbePackets > 0 {
			opts["probe_packets"] = strconv.Itoa(cfg.Engines.RTPDump.ProbePackets)
		}
	}
	return opts.Merge(media.Options(cfg.Pipeline.InputOptions))
}
