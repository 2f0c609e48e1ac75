// Package logger builds the process *slog.Logger and provides attribute helpers
// so billing, lifecycle and scheduler log lines share the same keys.
//
// New applies functional options, picks a text or JSON handler and runs the
// registered ContextExtractor callbacks on every record.
// The scheduler stores the cycle id and pass name in the context it hands to a
// pass, so every line logged inside that pass carries them automatically.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Parse(cfg.AppEnv), cfg.AppName),
//	    logger.WithLevelName(cfg.LogLevel),
//	    logger.WithContextExtractors(scheduler.LogExtractors()...),
//	)
//	log.InfoContext(ctx, "charge succeeded",
//	    logger.SubscriptionID(sub.ID),
//	    logger.Amount(sub.Price.String()),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
