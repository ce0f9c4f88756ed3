package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/internal/health"
	"github.com/zsiec/avwrap/internal/registry"
	"github.com/zsiec/avwrap/internal/server"
)

// payloadLimit marks the process unhealthy when more payloads are live than
// any sane pipeline holds.
const payloadLimit = 1 << 16

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve job status, health and metrics over HTTP",
		Long: "Serve job status, health and metrics over HTTP. With the redis " +
			"registry backend this shows the jobs of every avwrap process " +
			"sharing the same Redis.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobs, err := registry.New(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer jobs.Close()

			srv := server.New(a.cfg, a.log, jobs, checkers(a.cfg, jobs)...)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.log.Info("Server shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override the configured port")
	return cmd
}

// checkers returns the health checks for the configured engines and
// registry.
func checkers(cfg *config.Config, jobs registry.Registry) []health.Checker {
	pc := cfg.Pipeline
	var codecs []string
	for _, c := range []string{pc.VideoCodec, pc.AudioCodec} {
		if c != "" {
			codecs = append(codecs, c)
		}
	}
	out := []health.Checker{
		health.NewEngineChecker(pc.CodecEngine, pc.FormatEngine, codecs...),
		health.NewPayloadChecker(payloadLimit),
	}
	if r, ok := jobs.(*registry.RedisRegistry); ok {
		out = append(out, health.NewRedisChecker(r.Client()))
	}
	return out
}
