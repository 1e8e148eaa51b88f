package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/classify"
	"github.com/tomkat-cr/abstractgo/internal/config"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/logging"
)

type rootOptions struct {
	configFile string
	envFile    string
	logFile    string
	logLevel   string
}

// app is everything a subcommand needs, built once from configuration.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	api        *apiclient.Client
	dashboard  *dashboard.Service
	classifier *classify.Client
	closeLog   func()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "abstractgo",
		Short:         "Dashboard, export and classification client for the AbstractGo API",
		Long:          `Browse model metrics in the terminal, export them as PDF, Excel, CSV or JSON, and classify medical abstracts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "append logs to this file instead of stderr")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newDashboardCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newScheduleCmd(opts),
		newClassifyCmd(opts),
		newExtractCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// setup loads configuration and wires the API client, dashboard service and
// classifier. quiet discards logs unless a log file was requested.
func setup(opts *rootOptions, quiet bool) (*app, error) {
	cfg, err := config.Load(config.Options{File: opts.configFile, EnvFile: opts.envFile})
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Logging()
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	closeLog := func() {}
	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logCfg.Output = f
		closeLog = func() { _ = f.Close() }
	case quiet:
		logCfg.Output = io.Discard
	}
	log := logging.New(logCfg)

	api := apiclient.New(cfg.Client(logging.NewRequestHooks(log)))
	return &app{
		cfg:        cfg,
		log:        log,
		api:        api,
		dashboard:  dashboard.NewService(api, cfg.API.HistoryLimit, log.WithField("component", "dashboard")),
		classifier: classify.NewClient(api, cfg.API.PDFExtractPath),
		closeLog:   closeLog,
	}, nil
}

func (a *app) Close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
