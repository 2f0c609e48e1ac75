package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/billing"
	"github.com/dmitrymomot/telebill/pkg/gateway"
	"github.com/dmitrymomot/telebill/pkg/httpserver"
	"github.com/dmitrymomot/telebill/pkg/lifecycle"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/requestid"
	"github.com/dmitrymomot/telebill/pkg/scheduler"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

type handlers struct {
	app   *app
	sched *scheduler.Scheduler
	log   *slog.Logger
}

func newRouter(a *app, sched *scheduler.Scheduler) http.Handler {
	h := &handlers{app: a, sched: sched, log: a.log.With(logger.Component("api"))}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, 2*time.Second, a.checks))
	r.Get("/stats", h.stats)
	r.Post("/webhooks/paddle", h.paddleWebhook)

	if a.cfg.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(bearerAuth(a.cfg.AdminToken))
			r.Post("/subscriptions/{id}/cancel", h.cancel)
			r.Post("/subscriptions/{id}/pause", h.pause)
			r.Post("/subscriptions/{id}/resume", h.resume)
			r.Post("/refunds", h.refund)
			r.Put("/contacts/{userID}", h.upsertContact)
		})
	}
	return r
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"scheduler":       h.sched.State().String(),
		"jobs":            h.sched.Stats(),
		"gateway_breaker": h.app.gateway.State(),
	})
}

func (h *handlers) paddleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, err := h.app.paddle.ParseWebhook(r)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, err)
		return
	case errors.Is(err, gateway.ErrMissingWebhookSecret):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	log := h.log.With(logger.EventType(ev.ProviderEvent), slog.String("event_id", ev.ID))
	err = h.app.manager.HandleGatewayEvent(ctx, *ev)
	switch {
	case err == nil:
		log.InfoContext(ctx, "gateway event applied")
	case errors.Is(err, lifecycle.ErrUnknownEvent):
		log.DebugContext(ctx, "gateway event ignored")
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		log.WarnContext(ctx, "gateway event for unknown subscription", logger.Error(err))
	case subscription.IsInconsistency(err):
		log.WarnContext(ctx, "gateway event does not apply to subscription state", logger.Error(err))
	default:
		// non-2xx makes the gateway redeliver
		log.ErrorContext(ctx, "failed to apply gateway event", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	atPeriodEnd, _ := strconv.ParseBool(r.URL.Query().Get("at_period_end"))
	sub, err := h.app.manager.Cancel(r.Context(), id, reason(r, "admin cancel"), atPeriodEnd)
	h.respond(w, r, sub, err)
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.app.manager.Pause(r.Context(), id, reason(r, "admin pause"))
	h.respond(w, r, sub, err)
}

func (h *handlers) resume(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.app.manager.Resume(r.Context(), id, reason(r, "admin resume"))
	h.respond(w, r, sub, err)
}

type refundRequest struct {
	RecordID uuid.UUID `json:"record_id"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
}

func (h *handlers) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	refund, err := h.app.refunds.Issue(r.Context(), billing.RefundInput{
		RecordID: req.RecordID,
		Amount:   req.Amount,
		Reason:   req.Reason,
	})
	h.respond(w, r, refund, err)
}

type contactRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *handlers) upsertContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c := subscription.Contact{UserID: userID, Email: req.Email, Name: req.Name}
	h.respond(w, r, c, h.app.store.UpsertContact(r.Context(), c))
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err == nil {
		httpserver.WriteJSON(w, http.StatusOK, v)
		return
	}
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "admin request failed", logger.Error(err))
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrBillingRecordNotFound):
		return http.StatusNotFound
	case subscription.IsInconsistency(err),
		errors.Is(err, subscription.ErrConcurrentUpdate),
		errors.Is(err, billing.ErrRefundInProgress),
		errors.Is(err, subscription.ErrSubscriptionDeleted):
		return http.StatusConflict
	case errors.Is(err, subscription.ErrInvalidContact),
		errors.Is(err, billing.ErrInvalidRefund),
		errors.Is(err, subscription.ErrRefundNotAllowed),
		errors.Is(err, subscription.ErrRefundExceedsCaptured),
		errors.Is(err, subscription.ErrGatewayRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, subscription.ErrGatewayUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, code int, err error) {
	httpserver.WriteJSON(w, code, map[string]string{"error": err.Error()})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}

func reason(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.URL.Query().Get("reason")); v != "" {
		return v
	}
	return fallback
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
