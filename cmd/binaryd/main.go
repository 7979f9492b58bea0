package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/binaryplan/binaryd/internal/config"
	"github.com/binaryplan/binaryd/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/log/global"
)

// Version will be set during build time
var Version string

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "binaryd"
	app.Usage = "binary tree referral compensation engine"
	app.Flags = config.Flags
	app.Commands = append(
		app.Commands,
		&startCmd,
		&sweepCmd,
		&nodeCmd,
		&refreshCmd,
		&claimableCmd,
		&claimCmd,
		&settlementsCmd,
		&withdrawableCmd,
		&creditCmd,
		&orphansCmd,
		&trackCmd,
		&statusCmd,
	)
	app.DefaultCommand = startCmd.Name

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var startCmd = cli.Command{
	Name:   "start",
	Usage:  "Run the reconciliation daemon",
	Action: startAction,
}

func startAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	log.Debugf("binaryd config: %s", cfg)

	shutdownTelemetry, err := telemetry.InitOtelSDK(
		ctx.Context, cfg.OtelCollectorEndpoint,
		time.Duration(cfg.OtelPushInterval)*time.Second, Version,
	)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %s", err)
	}
	if cfg.OtelCollectorEndpoint != "" {
		log.AddHook(telemetry.NewOTelHook(global.GetLoggerProvider()))
	}

	stopProfiler, err := telemetry.InitPyroscope(cfg.PyroscopeServerURL)
	if err != nil {
		return err
	}

	svc, err := cfg.AppService()
	if err != nil {
		return err
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}

	log.RegisterExitHandler(func() {
		svc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.WithError(err).Warn("failed to shutdown telemetry")
		}
		if stopProfiler != nil {
			if err := stopProfiler(); err != nil {
				log.WithError(err).Warn("failed to stop profiler")
			}
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}

// loadConfig reads and validates the settings and applies the log level.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	return cfg, nil
}
