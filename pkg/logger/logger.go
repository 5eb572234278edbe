package logger

import (
	"github.com/atelier-ml/atelier/internal/config"

	"go.uber.org/zap"
)

var logger *zap.Logger

// NewLogger builds a zap logger for the configured environment: production
// encoding in prod, the deterministic example logger under test, and the
// human readable development logger otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Environment == "prod" {
		l, err = zap.NewProduction()
	} else if cfg.Environment == "test" {
		l = zap.NewExample()
	} else {
		l, err = zap.NewDevelopment()
	}

	return l, err
}

func MustNewLogger(cfg *config.Config) *zap.Logger {
	return zap.Must(NewLogger(cfg))
}

// InitLogger builds the logger and installs it as the process-wide default
// returned by GetLogger.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	var err error
	logger, err = NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func GetLogger() *zap.Logger {
	if logger == nil {
		panic("logger not initialized")
	}

	return logger
}
