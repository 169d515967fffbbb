package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

// NotificationOption customises a NotificationState.
type NotificationOption func(*NotificationState)

// WithDeduplicator drops pushes whose id was already accepted.
func WithDeduplicator(d ports.PushDeduplicator) NotificationOption {
	return func(s *NotificationState) { s.dedup = d }
}

// WithArchive stores every accepted push. Archive failures are logged only.
func WithArchive(a ports.NotificationArchive) NotificationOption {
	return func(s *NotificationState) { s.archive = a }
}

// WithNotificationClock overrides the time source used for read timestamps.
func WithNotificationClock(now func() time.Time) NotificationOption {
	return func(s *NotificationState) { s.now = now }
}

// NotificationState is the single owner of the notification list. Mutations
// go to the backend first and touch local state only once the backend call
// succeeded. The unread count is always derived from the list.
type NotificationState struct {
	api     ports.NotificationAPI
	dedup   ports.PushDeduplicator
	archive ports.NotificationArchive
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	items []domain.Notification
	// epoch changes on Reset; results of calls started under an older epoch
	// are dropped.
	epoch uint64
}

// NewNotificationState returns an empty state backed by api.
func NewNotificationState(api ports.NotificationAPI, log zerolog.Logger, opts ...NotificationOption) *NotificationState {
	s := &NotificationState{
		api: api,
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll replaces the local list with the backend snapshot.
func (s *NotificationState) FetchAll(ctx context.Context) ([]domain.Notification, error) {
	epoch := s.currentEpoch()

	list, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.log.Debug().Msg("discarding notification snapshot from a previous session")
		return slices.Clone(list), nil
	}
	s.items = slices.Clone(list)
	return slices.Clone(s.items), nil
}

// ReceivePush prepends a server-originated notification and reports whether
// it was accepted.
func (s *NotificationState) ReceivePush(ctx context.Context, n domain.Notification) bool {
	if s.dedup != nil && s.isDuplicate(ctx, n.ID) {
		s.log.Debug().Str("notification_id", n.ID.String()).Msg("duplicate push skipped")
		return false
	}

	s.mu.Lock()
	s.items = append([]domain.Notification{n}, s.items...)
	s.mu.Unlock()

	if s.dedup != nil {
		if err := s.dedup.Mark(ctx, n.ID); err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("failed to set dedup key")
		}
	}
	if s.archive != nil {
		if err := s.archive.Append(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("failed to archive notification")
		}
	}
	return true
}

func (s *NotificationState) isDuplicate(ctx context.Context, id domain.ID) bool {
	s.mu.RLock()
	local := slices.ContainsFunc(s.items, func(n domain.Notification) bool { return n.ID == id })
	s.mu.RUnlock()
	if local {
		return true
	}

	dup, err := s.dedup.IsDuplicate(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("notification_id", id.String()).Msg("dedup check failed, accepting push")
		return false
	}
	return dup
}

// MarkRead marks id as read on the backend, then locally if present. An id
// unknown locally still reaches the backend.
func (s *NotificationState) MarkRead(ctx context.Context, id domain.ID) error {
	epoch := s.currentEpoch()
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	now := s.now()
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].Read {
			s.items[i].Read = true
			s.items[i].ReadAt = &now
		}
	}
	return nil
}

// MarkAllRead marks every notification as read.
func (s *NotificationState) MarkAllRead(ctx context.Context) error {
	epoch := s.currentEpoch()
	if err := s.api.MarkAllRead(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	now := s.now()
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			s.items[i].ReadAt = &now
		}
	}
	return nil
}

// Delete removes id on the backend, then locally.
func (s *NotificationState) Delete(ctx context.Context, id domain.ID) error {
	epoch := s.currentEpoch()
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.items = slices.DeleteFunc(s.items, func(n domain.Notification) bool { return n.ID == id })
	return nil
}

// Snapshot returns a copy of the list, newest first.
func (s *NotificationState) Snapshot() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// UnreadCount is count(read == false) over the current list.
func (s *NotificationState) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CountUnread(s.items)
}

// Reset empties the list and invalidates in-flight calls.
func (s *NotificationState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.epoch++
}

// Follow keeps the state in step with the session: the list is fetched when
// a session is established and dropped when it is cleared.
func (s *NotificationState) Follow(ctx context.Context, session interface {
	Subscribe(fn func(domain.SessionEvent)) func()
}) func() {
	return session.Subscribe(func(ev domain.SessionEvent) {
		switch ev.Kind {
		case domain.SessionCleared:
			s.Reset()
		case domain.SessionAuthenticated:
			go func() {
				if _, err := s.FetchAll(ctx); err != nil {
					s.log.Warn().Err(err).Msg("initial notification fetch failed")
				}
			}()
		}
	})
}

func (s *NotificationState) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}
