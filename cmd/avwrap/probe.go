package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zsiec/avwrap/internal/pipeline"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		scan   bool
		asJSON bool
		format string
		rtpmap string
	)

	cmd := &cobra.Command{
		Use:   "probe <input>",
		Short: "Print the streams of an input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			cfg.Pipeline.Input = args[0]
			if format != "" {
				cfg.Pipeline.FormatEngine = format
			}
			if rtpmap != "" {
				cfg.Engines.RTPDump.RTPMap = rtpmap
			}

			report, err := pipeline.Probe(cmd.Context(), cfg, a.log, scan)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "Read every packet and count them per stream")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().StringVar(&format, "format-engine", "", "Format engine to open the input with")
	cmd.Flags().StringVar(&rtpmap, "rtpmap", "", "Payload type map for rtpdump inputs, e.g. 96=h264/90000")
	return cmd
}

func printReport(w io.Writer, r *pipeline.ProbeReport) {
	fmt.Fprintf(w, "Input:    %s\n", r.Info.URI)
	fmt.Fprintf(w, "Format:   %s\n", r.Info.Format)
	if r.Info.Duration > 0 {
		fmt.Fprintf(w, "Duration: %s\n", r.Info.Duration)
	}
	for k, v := range r.Info.Metadata {
		fmt.Fprintf(w, "  %s: %s\n", k, v)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "INDEX\tTYPE\tCODEC\tTIMEBASE\tDETAILS"
	if r.Counts != nil {
		header += "\tPACKETS\tBYTES\tKEYS\tDURATION"
	}
	fmt.Fprintln(tw, header)

	for _, st := range r.Info.SortedStreams() {
		details := ""
		switch {
		case st.Video != nil:
			details = fmt.Sprintf("%dx%d", st.Video.Width, st.Video.Height)
		case st.Audio != nil:
			details = fmt.Sprintf("%d Hz, %d ch", st.Audio.SampleRate, st.Audio.Channels)
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s", st.Index, st.Type, st.CodecName, st.Timebase, details)
		if c, ok := r.Counts[st.Index]; ok {
			line += fmt.Sprintf("\t%d\t%d\t%d\t%s", c.Packets, c.Bytes, c.Keys, c.Duration)
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}
