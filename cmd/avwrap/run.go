package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/internal/pipeline"
	"github.com/zsiec/avwrap/internal/registry"
	"github.com/zsiec/avwrap/internal/server"
)

// runFlags are the command-line overrides of the pipeline config. Only the
// flags the user set are applied.
type runFlags struct {
	streams      []string
	maxPackets   int64
	readRate     float64
	readBurst    int
	outputFormat string
	formatEngine string
	codecEngine  string
	rtpmap       string
	videoCodec   string
	audioCodec   string

	inputOptions   map[string]string
	outputOptions  map[string]string
	headerOptions  map[string]string
	decoderOptions map[string]string
	encoderOptions map[string]string

	noProgress bool
	serve      bool
}

func newRunCmd(a *app, mode string) *cobra.Command {
	f := &runFlags{}

	short := "Copy packets from input to output without decoding"
	if mode == pipeline.ModeTranscode {
		short = "Decode and re-encode the input streams into the output"
	}

	cmd := &cobra.Command{
		Use:   mode + " <input> <output>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			cfg.Pipeline.Mode = mode
			cfg.Pipeline.Input = args[0]
			cfg.Pipeline.Output = args[1]
			f.apply(cmd, cfg)
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.streams, "streams", nil, "Stream types to keep (video, audio, subtitle, data)")
	fl.Int64Var(&f.maxPackets, "max-packets", 0, "Stop after this many packets")
	fl.Float64Var(&f.readRate, "read-rate", 0, "Limit packets read per second")
	fl.IntVar(&f.readBurst, "read-burst", 1, "Packets read at once under --read-rate")
	fl.StringVar(&f.outputFormat, "output-format", "", "Output container format")
	fl.StringVar(&f.formatEngine, "format-engine", "", "Format engine")
	fl.StringVar(&f.rtpmap, "rtpmap", "", "Payload type map for rtpdump inputs, e.g. 96=h264/90000")
	fl.StringToStringVarP(&f.inputOptions, "input-option", "I", nil, "Input option key=value")
	fl.StringToStringVarP(&f.outputOptions, "output-option", "O", nil, "Output option key=value")
	fl.StringToStringVar(&f.headerOptions, "header-option", nil, "Header option key=value")
	fl.BoolVar(&f.noProgress, "no-progress", false, "Do not draw a progress bar")
	fl.BoolVar(&f.serve, "serve", false, "Run the status server while the job runs")

	if mode == pipeline.ModeTranscode {
		fl.StringVar(&f.codecEngine, "codec-engine", "", "Codec engine")
		fl.StringVar(&f.videoCodec, "video-codec", "", "Video encoder, default keeps the input codec")
		fl.StringVar(&f.audioCodec, "audio-codec", "", "Audio encoder, default keeps the input codec")
		fl.StringToStringVarP(&f.decoderOptions, "decoder-option", "D", nil, "Decoder option key=value")
		fl.StringToStringVarP(&f.encoderOptions, "encoder-option", "E", nil, "Encoder option key=value")
	}
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	pc := &cfg.Pipeline
	changed := cmd.Flags().Changed

	if changed("streams") {
		pc.Streams = f.streams
	}
	if changed("max-packets") {
		pc.MaxPackets = f.maxPackets
	}
	if changed("read-rate") {
		pc.ReadRate = f.readRate
	}
	if changed("read-burst") {
		pc.ReadBurst = f.readBurst
	}
	if changed("output-format") {
		pc.OutputFormat = f.outputFormat
	}
	if changed("format-engine") {
		pc.FormatEngine = f.formatEngine
	}
	if changed("codec-engine") {
		pc.CodecEngine = f.codecEngine
	}
	if changed("rtpmap") {
		cfg.Engines.RTPDump.RTPMap = f.rtpmap
	}
	if changed("video-codec") {
		pc.VideoCodec = f.videoCodec
	}
	if changed("audio-codec") {
		pc.AudioCodec = f.audioCodec
	}

	pc.InputOptions = mergeOptions(pc.InputOptions, f.inputOptions)
	pc.OutputOptions = mergeOptions(pc.OutputOptions, f.outputOptions)
	pc.HeaderOptions = mergeOptions(pc.HeaderOptions, f.headerOptions)
	pc.DecoderOptions = mergeOptions(pc.DecoderOptions, f.decoderOptions)
	pc.EncoderOptions = mergeOptions(pc.EncoderOptions, f.encoderOptions)

	if f.serve {
		cfg.Server.Enabled = true
	}
}

func mergeOptions(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, err := registry.New(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer jobs.Close()

	opts := []pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithRegistry(jobs),
	}
	var bar *progressReporter
	if !f.noProgress {
		bar = newProgressReporter(cmd.ErrOrStderr(), a.cfg.Pipeline.Mode, a.cfg.Pipeline.MaxPackets)
		opts = append(opts, pipeline.WithProgress(bar.update))
	}

	p, err := pipeline.New(a.cfg, opts...)
	if err != nil {
		return err
	}

	var srvDone chan error
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if a.cfg.Server.Enabled {
		srv := server.New(a.cfg, a.log, jobs, checkers(a.cfg, jobs)...)
		srvDone = make(chan error, 1)
		go func() { srvDone <- srv.Start(srvCtx) }()
	}

	stats, err := p.Run(ctx)
	if bar != nil {
		bar.finish()
	}

	if srvDone != nil {
		stopServer()
		if serr := <-srvDone; serr != nil {
			a.log.WithError(serr).Error("Status server error")
		}
	}
	if err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"job_id":          p.Job().ID,
		"packets_written": stats.PacketsWritten,
		"bytes_written":   stats.BytesWritten,
		"frames_decoded":  stats.FramesDecoded,
		"dropped":         stats.Dropped,
	}).Info("Done")
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d packets, %d bytes written to %s\n",
		p.Job().ID, stats.PacketsWritten, stats.BytesWritten, a.cfg.Pipeline.Output)
	return nil
}
