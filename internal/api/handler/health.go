package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

const readinessTimeout = 3 * time.Second

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Pinger checks one optional dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger pings a Redis client.
func RedisPinger(rdb *redis.Client) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}

// MongoPinger pings the server and then the database itself.
func MongoPinger(db *mongo.Database) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		if err := db.Client().Ping(ctx, nil); err != nil {
			return err
		}
		return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	})
}

// ChannelStatusSource reports the notification channel state.
type ChannelStatusSource interface {
	Status() domain.ChannelStatus
}

// SessionStatusSource reports whether a session is active.
type SessionStatusSource interface {
	Authenticated() bool
}

// ReadinessHandler handles GET /health/ready, the readiness probe.
// Configured dependencies must answer a ping; channel and session state are
// reported but never make the agent unready, since being logged out is a
// normal state.
type ReadinessHandler struct {
	deps    map[string]Pinger
	channel ChannelStatusSource
	session SessionStatusSource
}

// NewReadinessHandler returns a readiness probe. deps may be empty.
func NewReadinessHandler(deps map[string]Pinger, channel ChannelStatusSource, session SessionStatusSource) *ReadinessHandler {
	return &ReadinessHandler{deps: deps, channel: channel, session: session}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
	Session      string                      `json:"session"`
	Channel      *domain.ChannelStatus       `json:"channel,omitempty"`
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]dependencyStatus, len(names))
	healthy := true
	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	resp := readinessResponse{
		Status:       "ok",
		Dependencies: deps,
		Session:      "anonymous",
	}
	if h.session != nil && h.session.Authenticated() {
		resp.Session = "authenticated"
	}
	if h.channel != nil {
		st := h.channel.Status()
		resp.Channel = &st
	}

	httpStatus := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, resp)
}

// ChannelStatus handles GET /channel.
//
// @Summary      Notification channel status
// @Tags         channel
// @Produce      json
// @Success      200  {object}  domain.ChannelStatus
// @Router       /channel [get]
func (h *ReadinessHandler) ChannelStatus(c echo.Context) error {
	if h.channel == nil {
		return c.JSON(http.StatusOK, domain.ChannelStatus{State: domain.ChannelDisconnected})
	}
	return c.JSON(http.StatusOK, h.channel.Status())
}
