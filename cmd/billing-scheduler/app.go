package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/billing"
	"github.com/dmitrymomot/telebill/pkg/email"
	"github.com/dmitrymomot/telebill/pkg/gateway"
	"github.com/dmitrymomot/telebill/pkg/httpserver"
	"github.com/dmitrymomot/telebill/pkg/lifecycle"
	"github.com/dmitrymomot/telebill/pkg/locker"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/notify"
	"github.com/dmitrymomot/telebill/pkg/pg"
	"github.com/dmitrymomot/telebill/pkg/redis"
	"github.com/dmitrymomot/telebill/pkg/store/memstore"
	"github.com/dmitrymomot/telebill/pkg/store/pgstore"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

var errStoreNotConfigured = errors.New("PG_CONN_URL is required outside development")

type store interface {
	subscription.Repository
	subscription.ContactDirectory
}

// app holds the collaborators shared by every command.
type app struct {
	cfg     Config
	log     *slog.Logger
	store   store
	catalog *subscription.Catalog
	paddle  *gateway.Paddle
	gateway *gateway.Breaker
	locker  subscription.Locker
	checks  map[string]httpserver.Check
	closers []func()

	billing   *billing.Pass
	lifecycle *lifecycle.Pass
	manager   *lifecycle.Manager
	refunds   *billing.Refunds
}

func newApp(ctx context.Context, cfg Config, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, checks: make(map[string]httpserver.Check)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openLocker(ctx); err != nil {
		return nil, err
	}

	a.catalog, err = subscription.NewCatalog(ctx, subscription.FilePlansSource{Path: cfg.PlansFile})
	if err != nil {
		return nil, fmt.Errorf("load plan catalog: %w", err)
	}

	a.paddle, err = gateway.NewPaddle(cfg.Paddle)
	if err != nil {
		return nil, fmt.Errorf("configure paddle: %w", err)
	}
	a.gateway = gateway.NewBreaker(a.paddle, cfg.Breaker, log)

	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}

	a.billing = billing.New(a.store, a.gateway, notifier, a.catalog,
		billing.WithConfig(cfg.Billing),
		billing.WithLocker(a.locker),
		billing.WithLogger(log),
	)
	a.lifecycle = lifecycle.New(a.store,
		lifecycle.WithConfig(cfg.Lifecycle),
		lifecycle.WithLocker(a.locker),
		lifecycle.WithLogger(log),
	)
	a.manager = lifecycle.NewManager(a.store,
		lifecycle.WithGateway(a.gateway),
		lifecycle.WithManagerLogger(log),
	)
	a.refunds = billing.NewRefunds(a.store, a.gateway, log, billing.WithRefundLocker(a.locker))

	log.InfoContext(ctx, "application initialized",
		logger.Count("plans", a.catalog.Len()),
		slog.Bool("lock_enabled", cfg.LockEnabled),
		slog.Bool("postmark", cfg.Email.PostmarkEnabled()))
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.PG.ConnectionString == "" {
		if !a.cfg.Environment().IsDevelopment() {
			return errStoreNotConfigured
		}
		a.log.WarnContext(ctx, "PG_CONN_URL is not set, using in-memory store")
		a.store = memstore.New()
		return nil
	}

	pool, err := pg.Connect(ctx, a.cfg.PG)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)

	if err := pg.Migrate(ctx, pool, pgstore.Migrations, a.cfg.PG, a.log); err != nil {
		return err
	}
	a.store = pgstore.New(pool)
	a.checks["postgres"] = pg.Healthcheck(pool)
	return nil
}

func (a *app) openLocker(ctx context.Context) error {
	if !a.cfg.LockEnabled {
		a.locker = locker.Noop{}
		return nil
	}

	client, err := redis.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.locker = locker.NewRedis(client, a.cfg.LockTTL)
	a.checks["redis"] = redis.Healthcheck(client)
	return nil
}

func (a *app) notifier() (subscription.Notifier, error) {
	var sender email.EmailSender
	if a.cfg.Email.PostmarkEnabled() {
		var err error
		if sender, err = email.NewPostmarkClient(a.cfg.Email); err != nil {
			return nil, fmt.Errorf("configure postmark: %w", err)
		}
	} else {
		sender = email.NewDevSender(a.cfg.Email.DevOutputDir)
	}

	mailer := notify.NewEmailNotifier(sender, a.resolveRecipient,
		notify.WithLogger(a.log),
		notify.WithProductName(a.cfg.ProductName),
		notify.WithBillingURL(a.cfg.BillingPortalURL),
	)
	if a.cfg.Environment().IsDevelopment() {
		return notify.NewMulti(a.log, mailer, notify.NewLog(a.log)), nil
	}
	return notify.NewMulti(a.log, mailer), nil
}

func (a *app) resolveRecipient(ctx context.Context, userID uuid.UUID) (notify.Recipient, error) {
	c, err := a.store.Contact(ctx, userID)
	if err != nil {
		return notify.Recipient{}, err
	}
	return notify.Recipient{Email: c.Email, Name: c.Name}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
