package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

const (
	defaultHistoryWindow = 7 * 24 * time.Hour
	maxHistoryLimit      = 200
)

// NotificationService is the notification state as seen by the HTTP layer.
type NotificationService interface {
	FetchAll(ctx context.Context) ([]domain.Notification, error)
	Snapshot() []domain.Notification
	UnreadCount() int
	MarkRead(ctx context.Context, id domain.ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id domain.ID) error
}

// NotificationHistory reads archived pushes.
type NotificationHistory interface {
	Recent(ctx context.Context, owner domain.ID, since time.Time, limit int) ([]domain.Notification, error)
}

// NotificationHandler serves the notification list and its mutations.
type NotificationHandler struct {
	state   NotificationService
	history NotificationHistory
	now     func() time.Time
}

// NewNotificationHandler returns a handler; history may be nil when the
// archive is disabled.
func NewNotificationHandler(state NotificationService, history NotificationHistory) *NotificationHandler {
	return &NotificationHandler{state: state, history: history, now: time.Now}
}

type notificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

type unreadResponse struct {
	Unread int `json:"unread"`
}

func (h *NotificationHandler) listView() notificationListResponse {
	list := h.state.Snapshot()
	if list == nil {
		list = []domain.Notification{}
	}
	return notificationListResponse{Notifications: list, Unread: domain.CountUnread(list)}
}

// List returns the local notification list, newest first.
//
// @Summary      List notifications
// @Tags         notifications
// @Produce      json
// @Param        refresh  query     bool  false  "Re-fetch from the backend first"
// @Success      200      {object}  notificationListResponse
// @Failure      401      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		if _, err := h.state.FetchAll(c.Request().Context()); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, h.listView())
}

// Refresh replaces the local list with the backend snapshot.
//
// @Summary      Refresh notifications
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  notificationListResponse
// @Failure      502  {object}  map[string]string
// @Router       /notifications/refresh [post]
func (h *NotificationHandler) Refresh(c echo.Context) error {
	if _, err := h.state.FetchAll(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.listView())
}

// UnreadCount returns the number of unread notifications.
//
// @Summary      Unread counter
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  unreadResponse
// @Router       /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	return c.JSON(http.StatusOK, unreadResponse{Unread: h.state.UnreadCount()})
}

// MarkRead marks one notification as read.
//
// @Summary      Mark a notification as read
// @Tags         notifications
// @Param        id  path  string  true  "Notification id"
// @Success      200  {object}  unreadResponse
// @Failure      404  {object}  map[string]string
// @Router       /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.state.MarkRead(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unreadResponse{Unread: h.state.UnreadCount()})
}

// MarkAllRead marks every notification as read.
//
// @Summary      Mark all notifications as read
// @Tags         notifications
// @Success      200  {object}  unreadResponse
// @Router       /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	if err := h.state.MarkAllRead(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unreadResponse{Unread: h.state.UnreadCount()})
}

// Delete removes one notification.
//
// @Summary      Delete a notification
// @Tags         notifications
// @Param        id  path  string  true  "Notification id"
// @Success      204
// @Router       /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.state.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// History returns archived pushes for the current user.
//
// @Summary      Notification history
// @Tags         notifications
// @Produce      json
// @Param        since  query  string  false  "Look-back window, e.g. 24h (default 168h)"
// @Param        limit  query  int     false  "Maximum entries (default 50, max 200)"
// @Success      200  {array}   domain.Notification
// @Failure      404  {object}  map[string]string
// @Router       /notifications/history [get]
func (h *NotificationHandler) History(c echo.Context) error {
	if h.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "notification history is disabled")
	}
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	window := defaultHistoryWindow
	if v := c.QueryParam("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be a positive duration")
		}
		window = d
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}

	list, err := h.history.Recent(c.Request().Context(), identity.ID, h.now().Add(-window), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return c.JSON(http.StatusOK, list)
}
