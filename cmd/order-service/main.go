package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderprovider/internal/app"
	"github.com/vladislavdragonenkov/orderprovider/internal/version"
)

// setupLogger выставляет формат и уровень глобального logrus.
// При ошибке остаются text и info.
func setupLogger(level, format string) error {
	var errs []error

	switch format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		errs = append(errs, fmt.Errorf("unknown log format %q", format))
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
		errs = append(errs, err)
	}
	log.SetLevel(parsed)
	return errors.Join(errs...)
}

func main() {
	cfg, warnings := app.LoadConfig()
	if err := setupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Warn("некорректные настройки логирования")
	}
	for _, w := range warnings {
		log.WithError(w).Warn("переменная окружения проигнорирована")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithField("version", version.Current().String())
	logger.WithFields(log.Fields{
		"http":    cfg.HTTPAddr,
		"grpc":    cfg.GRPCAddr,
		"metrics": cfg.MetricsAddr,
		"storage": cfg.StorageDriver,
	}).Info("orderprovider starting")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("orderprovider stopped with error")
	}
	logger.Info("orderprovider stopped")
}
