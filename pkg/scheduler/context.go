package scheduler

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/telebill/pkg/logger"
)

type ctxKey struct{ name string }

var (
	cycleIDKey = ctxKey{"cycle_id"}
	jobNameKey = ctxKey{"job"}
)

// CycleID returns the identifier of the job run that ctx belongs to.
func CycleID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cycleIDKey).(string)
	return id, ok
}

// JobName returns the name of the job that ctx belongs to.
func JobName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(jobNameKey).(string)
	return name, ok
}

// LogExtractors add cycle_id and job attributes to records logged with a job context.
// Use with logger.WithContextExtractors.
func LogExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		func(ctx context.Context) (slog.Attr, bool) {
			id, ok := CycleID(ctx)
			return logger.CycleID(id), ok
		},
		func(ctx context.Context) (slog.Attr, bool) {
			name, ok := JobName(ctx)
			return slog.String("job", name), ok
		},
	}
}

func withJob(ctx context.Context, name, cycleID string) context.Context {
	ctx = context.WithValue(ctx, jobNameKey, name)
	return context.WithValue(ctx, cycleIDKey, cycleID)
}
