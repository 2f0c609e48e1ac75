package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/telebill/pkg/gateway"
	"github.com/dmitrymomot/telebill/pkg/httpserver"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/pg"
	"github.com/dmitrymomot/telebill/pkg/scheduler"
	"github.com/dmitrymomot/telebill/pkg/store/pgstore"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the billing and lifecycle passes on their schedules and serve the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	log := newLogger(cfg)
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, newRouter(a, sched)) })

	err = g.Wait()
	// receipts and alerts from the last billing cycle
	a.billing.Wait()
	log.Info("billing scheduler stopped")
	return err
}

func newScheduler(a *app) (*scheduler.Scheduler, error) {
	s := scheduler.New(
		scheduler.WithLogger(a.log),
		scheduler.WithBackoff(a.cfg.SchedulerBackoff),
	)

	if err := s.Add("billing", scheduler.Every(a.cfg.BillingInterval), func(ctx context.Context) error {
		_, err := a.billing.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	lifecycleSchedule := scheduler.Every(a.cfg.LifecycleInterval)
	if a.cfg.LifecycleCron != "" {
		var err error
		if lifecycleSchedule, err = scheduler.Cron(a.cfg.LifecycleCron); err != nil {
			return nil, err
		}
	}
	if err := s.Add("lifecycle", lifecycleSchedule, func(ctx context.Context) error {
		_, err := a.lifecycle.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func runOnceCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run one billing pass followed by one lifecycle pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := newLogger(cfg)
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			billed, billErr := a.billing.Run(ctx)
			a.billing.Wait()
			lifecycled, lcErr := a.lifecycle.Run(ctx)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "billing:   %+v\n", billed)
			fmt.Fprintf(out, "lifecycle: %+v\n", lifecycled)
			return errors.Join(billErr, lcErr)
		},
	}
}

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := newLogger(cfg)

			pool, err := pg.Connect(ctx, cfg.PG)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pg.Migrate(ctx, pool, pgstore.Migrations, cfg.PG, log)
		},
	}
}

func provisionPlansCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "provision-plans",
		Short: "Create gateway products and prices for plans without a gateway price",
		Long: `Reads PLANS_FILE and creates a Paddle product and recurring price for every
plan that has no gateway_price_ref yet. The printed price ids go into the
plan file so billing can reference them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := newLogger(cfg)

			plans, err := subscription.FilePlansSource{Path: cfg.PlansFile}.Load(ctx)
			if err != nil {
				return err
			}
			paddle, err := gateway.NewPaddle(cfg.Paddle)
			if err != nil {
				return err
			}
			refs, err := provisionPlans(ctx, paddle, plans)
			for _, id := range sortedKeys(refs) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tgateway_price_ref: %s\n", id, refs[id])
			}
			if err != nil {
				log.ErrorContext(ctx, "plan provisioning incomplete", logger.Error(err))
			}
			return err
		},
	}
}

// provisionPlans creates gateway prices for plans missing one and returns
// the new price refs by plan id. Plans already provisioned are left alone.
func provisionPlans(ctx context.Context, gw subscription.PaymentGateway, plans map[string]subscription.Plan) (map[string]string, error) {
	refs := make(map[string]string)
	for _, id := range sortedKeys(plans) {
		p := plans[id]
		if p.GatewayPriceRef != "" {
			continue
		}
		productRef, err := gw.CreateProduct(ctx, subscription.ProductRequest{Name: p.Name, Description: p.Description})
		if err != nil {
			return refs, fmt.Errorf("plan %s: create product: %w", id, err)
		}
		priceRef, err := gw.CreatePrice(ctx, subscription.PriceRequest{
			ProductRef:  productRef,
			Description: p.Name,
			Amount:      p.Price,
			Interval:    p.Interval,
		})
		if err != nil {
			return refs, fmt.Errorf("plan %s: create price: %w", id, err)
		}
		refs[id] = priceRef
	}
	return refs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
