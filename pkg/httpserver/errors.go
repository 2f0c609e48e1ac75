package httpserver

import "errors"

var (
	ErrStart          = errors.New("httpserver: listen failed")
	ErrShutdown       = errors.New("httpserver: graceful shutdown failed")
	ErrAlreadyRunning = errors.New("httpserver: Run called twice")
)
