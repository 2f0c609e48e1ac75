// Package httpserver runs the scheduler's operational HTTP surface.
//
// Server wraps net/http with functional options and graceful shutdown: Run
// serves until the context is cancelled and then calls http.Server.Shutdown
// bounded by the shutdown timeout. Signal handling is left to the caller,
// usually through signal.NotifyContext.
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second, map[string]httpserver.Check{
//		"postgres": pg.Healthcheck(pool),
//	}))
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("http server stopped", logger.Error(err))
//	}
//
// Run wraps listen errors with ErrStart and Shutdown wraps shutdown errors with
// ErrShutdown.
package httpserver
