package config

import "errors"

var (
	ErrParsingConfig  = errors.New("config: cannot parse environment")
	ErrReadingEnvFile = errors.New("config: cannot read env file")
)
