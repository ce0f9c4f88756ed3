package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zsiec/avwrap/internal/config"
	"github.com/zsiec/avwrap/internal/logger"
	"github.com/zsiec/avwrap/pkg/version"
)

// app carries the state shared by every subcommand once the persistent
// pre-run has loaded the config.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "avwrap",
		Short:        "Media pipeline over pluggable container and codec engines",
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newProbeCmd(a),
		newRunCmd(a, "remux"),
		newRunCmd(a, "transcode"),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	log.WithFields(logrus.Fields{
		"version":     version.Version,
		"config_path": a.configPath,
	}).Debug("Configuration loaded")
	return nil
}
