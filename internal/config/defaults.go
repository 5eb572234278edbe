package config

import "errors"

const (
	DefaultAtelierHome = "~/.atelier"
	DefaultPrecision   = PrecisionFloat16
)

var (
	ErrHomeNotSet       = errors.New("atelier home directory is not set")
	ErrHomeExpandFailed = errors.New("failed to expand atelier home directory")
)
