package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const persistTimeout = 5 * time.Second

// SessionOption customises a SessionStore.
type SessionOption func(*SessionStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// WithUnauthorizedHook registers the callback fired once per session when a
// 401 tears it down (the "redirect to login" of an interactive client).
func WithUnauthorizedHook(fn func()) SessionOption {
	return func(s *SessionStore) { s.onUnauthorized = fn }
}

// SessionStore owns the authentication lifecycle: the bearer token, its
// decoded expiry and the resolved identity. It is the only writer of the
// token; everything else reads it at the moment of use through Token.
//
// Concurrent logins follow a last-issued-wins policy. Every Login, Logout
// and teardown bumps a generation counter and a login result is applied
// only if nothing newer was issued while it was in flight.
type SessionStore struct {
	auth           ports.AuthAPI
	tokens         ports.TokenStore
	log            zerolog.Logger
	now            func() time.Time
	onUnauthorized func()

	initOnce sync.Once
	ready    chan struct{}

	mu            sync.RWMutex
	token         string
	expiry        time.Time // zero when the token carries no exp claim
	identity      *domain.Identity
	generation    uint64
	unauthHandled bool

	// persistMu serialises writes to the token store so that a slow login
	// cannot persist its token after a newer logout cleared the store.
	persistMu sync.Mutex

	// publishMu keeps listener notification in the same order as the
	// state changes that caused it.
	publishMu    sync.Mutex
	listenerMu   sync.RWMutex
	listeners    map[int]func(domain.SessionEvent)
	nextListener int
}

// NewSessionStore wires a session store to its backend and persistence.
func NewSessionStore(auth ports.AuthAPI, tokens ports.TokenStore, log zerolog.Logger, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		auth:      auth,
		tokens:    tokens,
		log:       log,
		now:       time.Now,
		ready:     make(chan struct{}),
		listeners: make(map[int]func(domain.SessionEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores the persisted session. It runs once per store; later
// calls return immediately. Failures are never fatal: the store simply ends
// up unauthenticated.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		defer close(s.ready)
		s.restore(ctx)
	})
}

// Ready is closed once Initialize has finished.
func (s *SessionStore) Ready() <-chan struct{} {
	return s.ready
}

func (s *SessionStore) restore(ctx context.Context) {
	token, err := s.tokens.LoadToken(ctx)
	if errors.Is(err, domain.ErrUnreadableToken) {
		s.log.Warn().Err(err).Msg("persisted token is unreadable, discarding")
		s.teardown("unreadable persisted token")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("could not load persisted token")
		return
	}
	if token == "" {
		return
	}

	expiry, err := decodeExpiry(token)
	if err != nil {
		s.log.Info().Err(err).Msg("persisted token is malformed, discarding")
		s.teardown("malformed token")
		return
	}
	if s.expired(expiry) {
		s.log.Info().Time("expired_at", expiry).Msg("persisted token expired, discarding")
		s.teardown("token expired")
		return
	}

	gen := s.bumpGeneration()
	identity, err := s.auth.Profile(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("profile fetch failed, discarding persisted session")
		s.teardown("profile unavailable")
		return
	}
	if identity == nil {
		s.teardown("empty profile")
		return
	}

	if !s.apply(gen, token, expiry, identity, "restored") {
		s.log.Debug().Msg("restored session superseded before it was applied")
	}
}

// Login authenticates against the backend. On failure the backend's message
// is returned verbatim inside an AuthError and the session is left as is.
func (s *SessionStore) Login(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	gen := s.bumpGeneration()

	res, err := s.auth.SignIn(ctx, creds)
	if err != nil {
		return nil, asAuthError(err)
	}
	if res == nil || res.AccessToken == "" || res.User == nil {
		return nil, &domain.AuthError{Message: "sign-in response did not include a token"}
	}

	expiry, err := decodeExpiry(res.AccessToken)
	if err != nil {
		return nil, &domain.AuthError{Message: "sign-in returned an unreadable token", Err: err}
	}
	if s.expired(expiry) {
		return nil, &domain.AuthError{Err: domain.ErrTokenExpired}
	}

	if !s.apply(gen, res.AccessToken, expiry, res.User, "login") {
		return nil, domain.ErrLoginSuperseded
	}
	return res.User.Clone(), nil
}

// Register creates an account. It never authenticates.
func (s *SessionStore) Register(ctx context.Context, profile domain.Profile) (string, error) {
	msg, err := s.auth.SignUp(ctx, profile)
	if err != nil {
		return "", asAuthError(err)
	}
	return msg, nil
}

// Logout clears the session. Calling it on a cleared store is a no-op apart
// from clearing persistence again.
func (s *SessionStore) Logout() {
	s.teardown("logout")
}

// HandleUnauthorized is the central reaction to a 401 from any backend call:
// the session is torn down and the unauthorized hook fires, at most once
// until the next successful login.
func (s *SessionStore) HandleUnauthorized() {
	s.mu.Lock()
	if s.unauthHandled {
		s.mu.Unlock()
		return
	}
	s.unauthHandled = true
	s.mu.Unlock()

	s.log.Warn().Msg("backend rejected the session, logging out")
	s.teardown("unauthorized")
	if s.onUnauthorized != nil {
		s.onUnauthorized()
	}
}

// CheckExpiry tears the session down if its token has expired and reports
// whether it did.
func (s *SessionStore) CheckExpiry() bool {
	s.mu.RLock()
	expired := s.token != "" && s.expired(s.expiry)
	s.mu.RUnlock()

	if !expired {
		return false
	}
	s.log.Info().Msg("session token expired")
	s.teardown("token expired")
	return true
}

// WatchExpiry calls CheckExpiry every interval until ctx is cancelled.
func (s *SessionStore) WatchExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckExpiry()
		}
	}
}

// Authenticated reports whether a non-expired token and a resolved identity
// are held.
func (s *SessionStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

func (s *SessionStore) authenticatedLocked() bool {
	return s.token != "" && s.identity != nil && !s.expired(s.expiry)
}

// Token returns the current bearer token, or "" when none is usable.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expired(s.expiry) {
		return ""
	}
	return s.token
}

// Expiry returns the decoded expiry of the current token (zero if none).
func (s *SessionStore) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// CurrentIdentity returns a copy of the subject, or nil when unauthenticated.
func (s *SessionStore) CurrentIdentity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return nil
	}
	return s.identity.Clone()
}

// HasAnyRole is true when the session is authenticated and either no roles
// are required or the subject holds at least one of them.
func (s *SessionStore) HasAnyRole(roles ...domain.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticatedLocked() {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	return s.identity.HasAnyRole(roles...)
}

// CachedRoles returns the persisted role list. Route guards use it while the
// identity is still being resolved.
func (s *SessionStore) CachedRoles(ctx context.Context) []domain.Role {
	roles, err := s.tokens.LoadRoles(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("could not load cached roles")
		return nil
	}
	return roles
}

// Subscribe registers fn for session events and returns the function that
// removes it. Listeners run synchronously on the goroutine that changed the
// session, so they must not block or call back into the store.
func (s *SessionStore) Subscribe(fn func(domain.SessionEvent)) func() {
	s.listenerMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *SessionStore) bumpGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

func (s *SessionStore) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// apply installs a new session if gen is still current.
func (s *SessionStore) apply(gen uint64, token string, expiry time.Time, identity *domain.Identity, reason string) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.token = token
	s.expiry = expiry
	s.identity = identity.Clone()
	s.unauthHandled = false
	event := domain.SessionEvent{
		Kind:     domain.SessionAuthenticated,
		Identity: identity.Clone(),
		Reason:   reason,
		At:       s.now(),
	}
	s.publishMu.Lock()
	s.mu.Unlock()
	s.publish(event)
	s.publishMu.Unlock()

	s.persist(gen, token, identity.Roles)

	s.log.Info().
		Str("user_id", identity.ID.String()).
		Str("reason", reason).
		Msg("session established")
	return true
}

// teardown clears the session and persistence and invalidates in-flight
// logins.
func (s *SessionStore) teardown(reason string) {
	s.mu.Lock()
	s.generation++
	held := s.token != "" || s.identity != nil
	s.token = ""
	s.expiry = time.Time{}
	s.identity = nil
	s.publishMu.Lock()
	s.mu.Unlock()
	if held {
		s.publish(domain.SessionEvent{Kind: domain.SessionCleared, Reason: reason, At: s.now()})
	}
	s.publishMu.Unlock()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted session")
	}
	if held {
		s.log.Info().Str("reason", reason).Msg("session cleared")
	}
}

func (s *SessionStore) persist(gen uint64, token string, roles []domain.Role) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.currentGeneration() != gen {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist token")
	}
	if err := s.tokens.SaveRoles(ctx, roles); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist role cache")
	}
}

func (s *SessionStore) publish(ev domain.SessionEvent) {
	s.listenerMu.RLock()
	fns := make([]func(domain.SessionEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *SessionStore) expired(expiry time.Time) bool {
	return !expiry.IsZero() && !s.now().Before(expiry)
}

// decodeExpiry reads the exp claim without verifying the signature; the
// backend is the only party able to verify it. A token without exp never
// expires locally.
func decodeExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

func asAuthError(err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	var backendErr *domain.BackendError
	if errors.As(err, &backendErr) {
		return &domain.AuthError{Message: backendErr.Message, Err: err}
	}
	return err
}
