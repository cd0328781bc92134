package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/xcan-gateway/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.ParseLevel(level), os.Stderr).With("app", "xcan-gateway")
	logging.Set(l)
	return l
}
