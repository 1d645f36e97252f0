// Command tatami is a tiling Wayland compositor.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"deedles.dev/tatami/config"
	"deedles.dev/tatami/internal/logger"
	"deedles.dev/tatami/render"
	"deedles.dev/tatami/server"
	"github.com/spf13/cobra"
)

var Version = "0.1.0-dev"

func main() {
	var configPath string
	var terminal string

	root := cobra.Command{
		Use:          "tatami",
		Short:        "Tatami - a tiling Wayland compositor",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, terminal)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	root.Flags().StringVarP(&terminal, "terminal", "t", os.Getenv("TERMINAL"), "terminal command for the spawn-terminal binding")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, terminal string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Logging.LogLevel != "" {
		logger.SetLevel(cfg.Logging.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := server.NewStaticSession(server.OutputsFromConfig(cfg)...)
	srv, err := server.New(cfg, session, render.NewSoftware())
	if err != nil {
		return err
	}
	srv.SetTerminal(terminal)

	if err := srv.Listen(); err != nil {
		return err
	}
	os.Setenv("WAYLAND_DISPLAY", srv.Socket())

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			cfg, err := config.Load(configPath)
			if err != nil {
				logger.Error("reload config", "err", err)
				continue
			}
			if err := srv.Reload(cfg); err != nil {
				logger.Error("reload", "err", err)
			}
		}
	}()

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
