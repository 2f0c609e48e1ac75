// Package requestid tags every ops API request with an id that is echoed in the
// X-Request-ID response header and added to log records through LogExtractor.
//
//	log := logger.New(logger.WithContextExtractors(requestid.LogExtractor()))
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
