package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/telebill/pkg/billing"
	"github.com/dmitrymomot/telebill/pkg/config"
	"github.com/dmitrymomot/telebill/pkg/gateway"
	"github.com/dmitrymomot/telebill/pkg/httpserver"
	"github.com/dmitrymomot/telebill/pkg/lifecycle"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/requestid"
	"github.com/dmitrymomot/telebill/pkg/scheduler"
	"github.com/dmitrymomot/telebill/pkg/store/memstore"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

const (
	webhookSecret = "pdl_ntfset_test"
	adminToken    = "s3cret"
)

func testApp(t *testing.T) *app {
	t.Helper()
	paddle, err := gateway.NewPaddle(gateway.PaddleConfig{
		APIKey:        "pdl_sdbx_apikey_test",
		WebhookSecret: webhookSecret,
		Environment:   "sandbox",
	})
	require.NoError(t, err)

	store := memstore.New()
	gw := gateway.NewBreaker(paddle, gateway.DefaultBreakerConfig(), logger.Noop())
	return &app{
		cfg:     Config{AdminToken: adminToken},
		log:     logger.Noop(),
		store:   store,
		paddle:  paddle,
		gateway: gw,
		checks:  map[string]httpserver.Check{},
		manager: lifecycle.NewManager(store, lifecycle.WithManagerLogger(logger.Noop())),
		refunds: billing.NewRefunds(store, gw, logger.Noop()),
	}
}

func testRouter(t *testing.T, a *app) http.Handler {
	t.Helper()
	s := scheduler.New(scheduler.WithLogger(logger.Noop()))
	require.NoError(t, s.Add("billing", scheduler.Hourly(), func(context.Context) error { return nil }))
	return newRouter(a, s)
}

func seed(t *testing.T, a *app, ref string) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		PlanID:                 "pro_monthly",
		Status:                 subscription.StatusActive,
		Price:                  subscription.Money{Amount: 2900, Currency: "USD"},
		NextBillingDate:        time.Now().Add(24 * time.Hour),
		PaymentMethodRef:       "pm_1",
		GatewaySubscriptionRef: ref,
	}
	require.NoError(t, a.store.Create(context.Background(), sub))
	return sub
}

func webhookRequest(secret, body string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":" + body))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader(body))
	req.Header.Set(gateway.SignatureHeader, fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func serveRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPaddleWebhook(t *testing.T) {
	t.Parallel()
	a := testApp(t)
	h := testRouter(t, a)
	sub := seed(t, a, "sub_01")

	body := `{"event_id":"evt_01","event_type":"subscription.paused","occurred_at":"2025-06-15T10:00:00Z",` +
		`"data":{"id":"sub_01","status":"paused"}}`

	rec := serveRequest(h, webhookRequest("wrong-secret", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveRequest(h, webhookRequest(webhookSecret, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := a.store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPaused, got.Status)

	// redelivery and unrelated events are acknowledged
	assert.Equal(t, http.StatusOK, serveRequest(h, webhookRequest(webhookSecret, body)).Code)
	other := `{"event_id":"evt_02","event_type":"address.created","occurred_at":"2025-06-15T10:00:00Z","data":{"id":"add_01"}}`
	assert.Equal(t, http.StatusOK, serveRequest(h, webhookRequest(webhookSecret, other)).Code)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	rec := serveRequest(testRouter(t, testApp(t)), httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scheduler string               `json:"scheduler"`
		Jobs      []scheduler.JobStats `json:"jobs"`
		Breaker   string               `json:"gateway_breaker"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stopped", body.Scheduler)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "billing", body.Jobs[0].Name)
	assert.Equal(t, "closed", body.Breaker)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	a := testApp(t)
	h := testRouter(t, a)
	sub := seed(t, a, "")

	admin := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		return serveRequest(h, req)
	}

	unauth := serveRequest(h, httptest.NewRequest(http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/pause", nil))
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)

	rec := admin(http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/pause?reason=vacation", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history, _ := a.store.History(context.Background(), sub.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "vacation", history[0].Reason)

	assert.Equal(t, http.StatusOK, admin(http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/resume", "").Code)
	assert.Equal(t, http.StatusNotFound, admin(http.MethodPost, "/admin/subscriptions/"+uuid.NewString()+"/pause", "").Code)
	assert.Equal(t, http.StatusBadRequest, admin(http.MethodPost, "/admin/subscriptions/not-a-uuid/pause", "").Code)

	rec = admin(http.MethodPut, "/admin/contacts/"+sub.UserID.String(), `{"email":"ada@example.com","name":"Ada"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c, err := a.store.Contact(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, http.StatusUnprocessableEntity, admin(http.MethodPut, "/admin/contacts/"+sub.UserID.String(), `{"email":"nope"}`).Code)

	rec = admin(http.MethodPost, "/admin/refunds", `{"record_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesDisabledWithoutToken(t *testing.T) {
	t.Parallel()
	a := testApp(t)
	a.cfg.AdminToken = ""
	rec := serveRequest(testRouter(t, a), httptest.NewRequest(http.MethodPost, "/admin/refunds", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		code int
	}{
		{subscription.ErrSubscriptionNotFound, http.StatusNotFound},
		{&subscription.InconsistencyError{Err: errors.New("illegal")}, http.StatusConflict},
		{fmt.Errorf("save: %w", subscription.ErrConcurrentUpdate), http.StatusConflict},
		{fmt.Errorf("%w: record 1", billing.ErrRefundInProgress), http.StatusConflict},
		{subscription.ErrRefundExceedsCaptured, http.StatusUnprocessableEntity},
		{subscription.ErrGatewayUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}

type mockGateway struct {
	subscription.PaymentGateway
	mock.Mock
}

func (m *mockGateway) CreateProduct(ctx context.Context, req subscription.ProductRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePrice(ctx context.Context, req subscription.PriceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestProvisionPlans(t *testing.T) {
	t.Parallel()
	plans := map[string]subscription.Plan{
		"pro_monthly": {ID: "pro_monthly", Name: "Pro", Price: subscription.Money{Amount: 2900, Currency: "USD"}, Interval: subscription.BillingIntervalMonthly},
		"provisioned": {ID: "provisioned", Name: "Basic", GatewayPriceRef: "pri_existing"},
	}

	gw := &mockGateway{}
	gw.On("CreateProduct", mock.Anything, subscription.ProductRequest{Name: "Pro"}).Return("pro_01", nil).Once()
	gw.On("CreatePrice", mock.Anything, subscription.PriceRequest{
		ProductRef:  "pro_01",
		Description: "Pro",
		Amount:      subscription.Money{Amount: 2900, Currency: "USD"},
		Interval:    subscription.BillingIntervalMonthly,
	}).Return("pri_01", nil).Once()

	refs, err := provisionPlans(context.Background(), gw, plans)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pro_monthly": "pri_01"}, refs)
	gw.AssertExpectations(t)
}

func TestProvisionPlansStopsOnError(t *testing.T) {
	t.Parallel()
	gw := &mockGateway{}
	gw.On("CreateProduct", mock.Anything, mock.Anything).Return("", subscription.ErrGatewayRejected).Once()

	_, err := provisionPlans(context.Background(), gw, map[string]subscription.Plan{"a": {ID: "a", Name: "A"}})
	assert.ErrorIs(t, err, subscription.ErrGatewayRejected)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load[Config](config.WithEnviron(map[string]string{"APP_ENV": "production"}))
	require.NoError(t, err)

	assert.True(t, cfg.Environment().IsProduction())
	assert.Equal(t, time.Hour, cfg.BillingInterval)
	assert.Equal(t, 6*time.Hour, cfg.LifecycleInterval)
	assert.Equal(t, 3, cfg.Billing.FailureThreshold)
	assert.Equal(t, 72*time.Hour, cfg.Lifecycle.ExpiryGrace)
	assert.Equal(t, "config/plans.yaml", cfg.PlansFile)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.LockEnabled)
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()
	a := testApp(t)
	a.cfg.BillingInterval = time.Hour
	a.cfg.LifecycleInterval = 6 * time.Hour
	a.cfg.SchedulerBackoff = time.Minute

	s, err := newScheduler(a)
	require.NoError(t, err)
	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "billing", stats[0].Name)
	assert.Equal(t, "lifecycle", stats[1].Name)

	a.cfg.LifecycleCron = "not a cron"
	_, err = newScheduler(a)
	assert.Error(t, err)
}

func TestBundledPlanCatalogIsValid(t *testing.T) {
	t.Parallel()
	catalog, err := subscription.NewCatalog(context.Background(), subscription.FilePlansSource{Path: "../../config/plans.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())
}

func TestRouterSetsRequestID(t *testing.T) {
	t.Parallel()
	rec := serveRequest(testRouter(t, testApp(t)), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestid.Header))
}

func TestRootCommandRunsServe(t *testing.T) {
	t.Parallel()
	errStop := errors.New("stop before serving")

	tests := []struct {
		name string
		args []string
		opts int
	}{
		{"no subcommand", nil, 0},
		{"no subcommand with env file", []string{"--env-file", "prod.env"}, 1},
		{"explicit serve", []string{"serve"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var loaded []config.LoadOption
			calls := 0
			root := newRootCmd(func(opts ...config.LoadOption) (Config, error) {
				calls++
				loaded = opts
				return Config{}, errStop
			})
			root.SetArgs(tt.args)

			err := root.ExecuteContext(context.Background())
			require.ErrorIs(t, err, errStop)
			assert.Equal(t, 1, calls)
			assert.Len(t, loaded, tt.opts)
		})
	}
}
