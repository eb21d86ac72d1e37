package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"clocklayer/internal/platform/config"
	"clocklayer/internal/platform/logger"
)

// main parses flags, loads configuration and hands off to the app. Business
// logic lives in the internal service packages.
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "clocklayer:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string
	flags := pflag.NewFlagSet("clocklayer", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", os.Getenv(config.EnvConfigPath), "path to the YAML config file")
	migrateOnly := flags.Bool("migrate-only", false, "apply database migrations and exit")
	logLevel := flags.String("log-level", "", "override log.level from the config")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if *migrateOnly {
		if app.db == nil {
			return errors.New("--migrate-only needs postgres.dsn")
		}
		log.InfoContext(ctx, "migrations applied")
		return nil
	}
	return app.run(ctx)
}
