// Package metrics defines and registers the custom Prometheus metrics of the
// marketplace agent. It is the single source of truth for metric names,
// labels, and help strings.
//
// All metrics register with the default registry at package init, so the
// /metrics endpoint exposes them as soon as the package is imported.
package metrics

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

const namespace = "marketplace"

// ── Channel metrics ───────────────────────────────────────────────────────────

// ChannelState is 1 for the current channel state and 0 for the others.
// Label:
//   - state: "disconnected", "connecting" or "connected"
var ChannelState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channel_state",
		Help:      "Current state of the real-time notification channel.",
	},
	[]string{"state"},
)

// ChannelRetryAttempts tracks consecutive failed connection attempts.
var ChannelRetryAttempts = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channel_retry_attempts",
		Help:      "Consecutive failed connection attempts since the last successful connect.",
	},
)

// ChannelFramesTotal counts inbound frames by topic kind.
// Label:
//   - kind: "private" or "shared"
var ChannelFramesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_frames_total",
		Help:      "Total number of frames received on subscribed topics.",
	},
	[]string{"kind"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationPushesTotal counts pushed notifications.
// Label:
//   - result: "accepted" or "duplicate"
var NotificationPushesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_pushes_total",
		Help:      "Total number of pushed notifications, by outcome.",
	},
	[]string{"result"},
)

// TrackUnread exposes the unread counter of the notification state as
// marketplace_notifications_unread. Registering twice is a no-op.
func TrackUnread(unread func() int) {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_unread",
			Help:      "Number of unread notifications held locally.",
		},
		func() float64 { return float64(unread()) },
	)
	if err := prometheus.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
	}
}

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionEventsTotal counts session transitions.
// Labels:
//   - kind: "authenticated" or "cleared"
//   - reason: what triggered the transition (e.g. "login", "expired", "unauthorized")
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session transitions.",
	},
	[]string{"kind", "reason"},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestDuration measures requests served by the local API.
// Labels:
//   - method: HTTP method
//   - route: the registered route pattern, not the raw path
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of requests served by the local API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// Middleware records HTTPRequestDuration for every request except skip.
func Middleware(skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if slices.Contains(skip, c.Path()) {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			HTTPRequestDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestDuration measures calls to the marketplace backend.
// Labels:
//   - operation: logical client operation (e.g. "notifications.list")
//   - method: HTTP method
//   - status: response status code, or "error" when no response arrived
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of calls to the marketplace backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "method", "status"},
)

// ObserveBackendRequest records one backend call. Its signature matches
// rest.Observer.
func ObserveBackendRequest(operation, method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	if operation == "" {
		operation = "unknown"
	}
	BackendRequestDuration.WithLabelValues(operation, method, code).Observe(elapsed.Seconds())
}

// ObserveChannelStatus updates the channel gauges from a status snapshot.
func ObserveChannelStatus(st domain.ChannelStatus) {
	for _, s := range []domain.ChannelState{domain.ChannelDisconnected, domain.ChannelConnecting, domain.ChannelConnected} {
		v := 0.0
		if s == st.State {
			v = 1
		}
		ChannelState.WithLabelValues(string(s)).Set(v)
	}
	ChannelRetryAttempts.Set(float64(st.Attempts))
}

// ObserveSessionEvent counts a session transition.
func ObserveSessionEvent(ev domain.SessionEvent) {
	SessionEventsTotal.WithLabelValues(string(ev.Kind), ev.Reason).Inc()
}

// ObserveFrame counts one inbound channel frame.
func ObserveFrame(kind domain.TopicKind) {
	ChannelFramesTotal.WithLabelValues(string(kind)).Inc()
}

// ObservePush counts one pushed notification.
func ObservePush(accepted bool) {
	result := "duplicate"
	if accepted {
		result = "accepted"
	}
	NotificationPushesTotal.WithLabelValues(result).Inc()
}
