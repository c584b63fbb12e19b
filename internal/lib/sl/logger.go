package sl

import (
	"log/slog"
	"os"
)

// Окружения запуска.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// SetupLogger текстовый логгер в stdout; в local включён debug.
func SetupLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == EnvLocal || env == EnvDev {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
