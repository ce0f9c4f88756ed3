package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avformat"
	"github.com/zsiec/avwrap/pkg/media"
)

// StreamCount totals the packets seen on one stream during a scan.
type StreamCount struct {
	Packets  int64         `json:"packets"`
	Bytes    int64         `json:"bytes"`
	Keys     int64         `json:"key_packets"`
	Duration time.Duration `json:"duration"`
}

// ProbeReport is the result of Probe.
type ProbeReport struct {
	Info *media.MediaInfo `json:"info"`
	// Counts is filled only by a scan, keyed by stream index.
	Counts map[int]*StreamCount `json:"counts,omitempty"`
}

// Probe opens cfg.Pipeline.Input with the configured format engine and
// returns its streams. With scan set every packet is read and counted.
func Probe(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, scan bool) (*ProbeReport, error) {
	if cfg.Pipeline.Input == "" {
		return nil, averr.InvalidArgument("pipeline.probe", "input is required")
	}
	formats, err := FormatEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	src, err := avformat.NewSource(formats, cfg.Pipeline.Input, avformat.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info, err := src.Open(inputOptions(cfg))
	if err != nil {
		return nil, err
	}
	report := &ProbeReport{Info: info}
	if !scan {
		return report, nil
	}

	report.Counts = make(map[int]*StreamCount, len(info.Streams))
	for idx := range info.Streams {
		report.Counts[idx] = &StreamCount{}
	}

	pkt := media.NewPacket()
	defer pkt.Clear()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := src.Read(pkt)
		if err != nil {
			return nil, err
		}
		if res.EndOfStream() {
			break
		}
		if res.Retry() {
			continue
		}
		if res.Fatal() {
			return nil, averr.Engine("pipeline.probe", int(res.Code), formats.Describe(res.Code))
		}

		c := report.Counts[pkt.StreamIndex()]
		c.Packets++
		c.Bytes += int64(pkt.Size())
		if pkt.IsKey() {
			c.Keys++
		}
		if ts := pkt.Pts(); !ts.IsEmpty() && ts.Duration() > c.Duration {
			c.Duration = ts.Duration()
		}
		pkt.Clear()
	}
	return report, nil
}
