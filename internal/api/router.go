package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/api/handler"
	"github.com/homeservice/marketplace-agent/internal/api/metrics"
	"github.com/homeservice/marketplace-agent/internal/api/middleware"
	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

// Session is everything the routes need from the session store.
type Session interface {
	handler.SessionService
	middleware.Session
	Authenticated() bool
}

// Dependencies are the collaborators the local API is built from. History,
// Channel and Pingers are optional.
type Dependencies struct {
	Session       Session
	Notifications handler.NotificationService
	History       handler.NotificationHistory
	Marketplace   *service.Marketplace
	Channel       handler.ChannelStatusSource
	Pingers       map[string]handler.Pinger
	Log           zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(metrics.Middleware("/metrics", "/health", "/health/ready"))
	e.Use(requestLogger(deps.Log))

	// --- Session routes ---
	authHandler := handler.NewAuthHandler(deps.Session)
	e.POST("/session/register", authHandler.Register)
	e.POST("/session/login", authHandler.Login)
	e.POST("/session/logout", authHandler.Logout)
	e.GET("/session", authHandler.Me)

	requireSession := middleware.RequireSession(deps.Session)
	anyRole := middleware.RequireRoles(deps.Session)
	providerOnly := middleware.RequireRoles(deps.Session, domain.RoleProvider)
	adminOnly := middleware.RequireRoles(deps.Session, domain.RoleAdmin)

	// --- Notifications ---
	notificationHandler := handler.NewNotificationHandler(deps.Notifications, deps.History)
	notifications := e.Group("/notifications", requireSession)
	notifications.GET("", notificationHandler.List)
	notifications.POST("/refresh", notificationHandler.Refresh)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.GET("/history", notificationHandler.History)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	// --- Catalog ---
	catalogHandler := handler.NewCatalogHandler(deps.Marketplace)
	e.GET("/services", catalogHandler.ListServices)
	e.GET("/services/:id", catalogHandler.GetService)
	e.POST("/services", catalogHandler.CreateService, adminOnly)
	e.PUT("/services/:id", catalogHandler.UpdateService, adminOnly)
	e.DELETE("/services/:id", catalogHandler.DeleteService, adminOnly)

	e.GET("/providers", catalogHandler.ListProviders)
	e.GET("/providers/dashboard", catalogHandler.Dashboard, providerOnly)
	e.GET("/providers/:id", catalogHandler.GetProvider)
	e.POST("/providers", catalogHandler.RegisterProvider, anyRole)
	e.PUT("/providers/:id", catalogHandler.UpdateProvider, providerOnly)

	e.GET("/reviews/provider/:id", catalogHandler.ProviderReviews)
	e.GET("/reviews/service/:id", catalogHandler.ServiceReviews)
	e.GET("/reviews/mine", catalogHandler.MyReviews, anyRole)
	e.POST("/reviews", catalogHandler.SubmitReview, anyRole)
	e.PUT("/reviews/:id", catalogHandler.UpdateReview, anyRole)
	e.DELETE("/reviews/:id", catalogHandler.DeleteReview, anyRole)

	// --- Service requests ---
	requestHandler := handler.NewRequestHandler(deps.Marketplace)
	requests := e.Group("/service-requests", anyRole)
	requests.GET("", requestHandler.Mine)
	requests.POST("", requestHandler.Submit)
	requests.GET("/provider", requestHandler.Assigned, providerOnly)
	requests.GET("/all", requestHandler.All, adminOnly)
	requests.GET("/:id", requestHandler.Get)
	requests.PUT("/:id/status", requestHandler.UpdateStatus)
	requests.PUT("/:id/cancel", requestHandler.Cancel)
	requests.PUT("/:id/complete", requestHandler.Complete)

	// --- Health probes and metrics (no session required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Pingers, deps.Channel, deps.Session)

	e.GET("/health", healthHandler.Liveness)           // is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // are dependencies up?
	e.GET("/channel", readinessHandler.ChannelStatus)
	e.GET("/metrics", metrics.Handler())

	return e
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
