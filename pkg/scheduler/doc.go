// Package scheduler drives periodic jobs from a single loop.
//
// Each job has its own Schedule (a fixed interval or a cron expression) and
// its own next-run time, so a slow cadence is never starved by a fast one.
// Due jobs run one after another in registration order; two jobs never run
// at the same time. A job that returns an error or panics is logged and
// retried after the configured back-off while the other jobs keep their
// cadence.
//
// Every run gets a cycle identifier available through CycleID and, via
// LogExtractors, attached to every record logged with the job context.
//
//	s := scheduler.New(scheduler.WithLogger(log), scheduler.WithBackoff(5*time.Minute))
//	_ = s.Add("billing", scheduler.Every(time.Hour), func(ctx context.Context) error {
//		_, err := billingPass.Run(ctx)
//		return err
//	})
//	if err := s.Run(ctx); err != nil {
//		return err
//	}
//
// Cancelling the context passed to Run stops the loop between jobs. A job in
// flight receives a context detached from that cancellation and finishes.
package scheduler
