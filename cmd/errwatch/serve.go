package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kargones/errwatch/internal/config"
	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/di"
)

const tracerShutdownTimeout = 5 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить конвейер и HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

// runServe работает до SIGINT/SIGTERM или отмены контекста команды.
// Конвейер останавливается после HTTP-сервера, чтобы последние события
// попали в снапшот.
func runServe(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	app, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		return withExitCode(constants.ExitInit, err)
	}
	logger := app.Logger

	logger.Info("errwatch запускается",
		"version", constants.Version,
		"commit", constants.PreCommitHash,
		"addr", cfg.Server.Addr,
		"snapshot", cfg.Snapshot.Backend,
		"sink", cfg.Sink.Type,
	)
	cfg.LogWarnings(logger)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracerShutdownTimeout)
		defer cancel()
		if err := app.TracerShutdown(shutdownCtx); err != nil {
			logger.Error("ошибка завершения tracing", "error", err.Error())
		}
	}()

	if err := app.Pipeline.Start(ctx); err != nil {
		return err
	}

	serveErr := app.Server.Run(ctx)
	if serveErr != nil {
		logger.Error("HTTP-сервер завершился с ошибкой", "error", serveErr.Error())
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Pipeline.Stop(stopCtx); err != nil {
		logger.Error("ошибка остановки конвейера", "error", err.Error())
	}

	logger.Info(constants.MsgAppExit)
	return serveErr
}
