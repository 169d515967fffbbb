package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	defaultRetryDelay   = 5 * time.Second
	defaultPrivateTopic = "/user/{userId}/notifications"
	defaultSharedTopic  = "/topic/service-requests"
	userIDPlaceholder   = "{userId}"
	eventBuffer         = 16
)

// ChannelConfig controls topics and reconnect behaviour. With the zero
// MaxRetryDelay and MaxRetries the manager retries every RetryDelay for as
// long as the session stays authenticated.
type ChannelConfig struct {
	PrivateTopic  string
	SharedTopic   string
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration // > RetryDelay enables doubling up to this value
	MaxRetries    int           // 0 = unlimited
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.PrivateTopic == "" {
		c.PrivateTopic = defaultPrivateTopic
	}
	if c.SharedTopic == "" {
		c.SharedTopic = defaultSharedTopic
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// SessionSource is the part of the session store the channel manager needs.
type SessionSource interface {
	Authenticated() bool
	Token() string
	CurrentIdentity() *domain.Identity
	HasAnyRole(roles ...domain.Role) bool
	Subscribe(fn func(domain.SessionEvent)) func()
}

// channel manager events
type (
	connectRequested struct{ identity *domain.Identity }
	teardownRequested struct{ reason string }
	dialFinished      struct {
		attempt uint64
		conn    ports.ChannelConn
		topics  map[string]domain.TopicKind
		err     error
	}
	connectionLost struct {
		attempt uint64
		err     error
	}
)

// ChannelManager keeps the real-time notification channel alive while the
// session is authenticated. All state transitions happen on the goroutine
// running Run; other goroutines only post events.
type ChannelManager struct {
	transport ports.ChannelTransport
	session   SessionSource
	sink      ports.MessageSink
	cfg       ChannelConfig
	log       zerolog.Logger
	onChange  func(domain.ChannelStatus)

	events  chan any
	stopped chan struct{}

	// postMu orders posts against shutdown: once closed is set no event
	// enters the queue, so a connection carried by a late dial result
	// is always released.
	postMu sync.Mutex
	closed bool

	// owned by the Run goroutine
	identity   *domain.Identity
	attempt    uint64
	conn       ports.ChannelConn
	cancelDial context.CancelFunc
	retryTimer *time.Timer
	retryC     <-chan time.Time
	failures   int

	statusMu sync.RWMutex
	status   domain.ChannelStatus
}

// NewChannelManager creates a manager. onChange, when non-nil, is called
// after every state change with a snapshot of the status.
func NewChannelManager(
	transport ports.ChannelTransport,
	session SessionSource,
	sink ports.MessageSink,
	cfg ChannelConfig,
	log zerolog.Logger,
	onChange func(domain.ChannelStatus),
) *ChannelManager {
	return &ChannelManager{
		transport: transport,
		session:   session,
		sink:      sink,
		cfg:       cfg.withDefaults(),
		log:       log,
		onChange:  onChange,
		events:    make(chan any, eventBuffer),
		stopped:   make(chan struct{}),
		status:    domain.ChannelStatus{State: domain.ChannelDisconnected},
	}
}

// Status returns a snapshot of the channel state.
func (m *ChannelManager) Status() domain.ChannelStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	st := m.status
	st.Subscriptions = append([]string(nil), m.status.Subscriptions...)
	return st
}

// Run drives the state machine until ctx is cancelled. The connection, if
// any, is closed and no retry is pending when Run returns.
func (m *ChannelManager) Run(ctx context.Context) error {
	defer m.shutdown()

	unsubscribe := m.session.Subscribe(m.onSessionEvent)
	defer unsubscribe()
	defer m.teardown("shutdown")

	if identity := m.session.CurrentIdentity(); identity != nil {
		m.handle(ctx, connectRequested{identity: identity})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.handle(ctx, ev)
		case <-m.retryC:
			m.retryC = nil
			m.retryElapsed(ctx)
		}
	}
}

func (m *ChannelManager) onSessionEvent(ev domain.SessionEvent) {
	switch ev.Kind {
	case domain.SessionAuthenticated:
		m.post(connectRequested{identity: ev.Identity})
	case domain.SessionCleared:
		m.post(teardownRequested{reason: ev.Reason})
	}
}

func (m *ChannelManager) post(ev any) {
	m.postMu.Lock()
	defer m.postMu.Unlock()
	if m.closed {
		release(ev)
		return
	}
	select {
	case m.events <- ev:
	case <-m.stopped:
		release(ev)
	}
}

// shutdown stops accepting events and releases whatever is still queued.
func (m *ChannelManager) shutdown() {
	close(m.stopped)

	m.postMu.Lock()
	defer m.postMu.Unlock()
	m.closed = true
	for {
		select {
		case ev := <-m.events:
			release(ev)
		default:
			return
		}
	}
}

// release closes the connection carried by an event nobody will handle.
func release(ev any) {
	if e, ok := ev.(dialFinished); ok && e.conn != nil {
		_ = e.conn.Close()
	}
}

func (m *ChannelManager) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case connectRequested:
		if e.identity == nil {
			return
		}
		if m.identity != nil && m.identity.ID == e.identity.ID && m.active() {
			return
		}
		switch {
		case m.identity == nil:
		case m.identity.ID != e.identity.ID:
			m.teardown("identity changed")
		default:
			m.teardown("restarting after giving up")
		}
		m.identity = e.identity
		m.failures = 0
		m.connect(ctx)

	case teardownRequested:
		m.teardown(e.reason)

	case dialFinished:
		m.dialFinished(ctx, e)

	case connectionLost:
		if e.attempt != m.attempt || m.conn == nil {
			return
		}
		_ = m.conn.Close()
		m.conn = nil
		if e.err == nil {
			e.err = domain.ErrChannelClosed
		}
		m.fail(e.err)
	}
}

func (m *ChannelManager) connect(ctx context.Context) {
	token := m.session.Token()
	if token == "" || m.identity == nil {
		m.teardown("no usable token")
		return
	}

	m.attempt++
	attempt := m.attempt
	topics := m.topicsFor(m.identity)

	dialCtx, cancel := context.WithCancel(ctx)
	m.cancelDial = cancel

	m.setStatus(func(st *domain.ChannelStatus) {
		st.State = domain.ChannelConnecting
		st.Attempts++
		st.Subscriptions = nil
	})
	m.log.Debug().Uint64("attempt", attempt).Msg("connecting notification channel")

	go func() {
		conn, err := m.transport.Dial(dialCtx, token)
		if err == nil {
			for _, topic := range sortedTopics(topics) {
				if err = conn.Subscribe(topic); err != nil {
					_ = conn.Close()
					conn = nil
					break
				}
			}
		}
		if conn != nil && dialCtx.Err() != nil {
			_ = conn.Close()
			return
		}
		m.post(dialFinished{attempt: attempt, conn: conn, topics: topics, err: err})
	}()
}

// active reports whether a connection, a dial or a retry is in progress.
// A manager that gave up after MaxRetries is idle and may be restarted by a
// fresh sign-in of the same user.
func (m *ChannelManager) active() bool {
	return m.conn != nil || m.cancelDial != nil || m.retryC != nil
}

// topicsFor evaluates the role-gated shared topic once, at connect time.
func (m *ChannelManager) topicsFor(identity *domain.Identity) map[string]domain.TopicKind {
	topics := map[string]domain.TopicKind{
		strings.ReplaceAll(m.cfg.PrivateTopic, userIDPlaceholder, identity.ID.String()): domain.TopicPrivate,
	}
	if m.session.HasAnyRole(domain.RoleProvider) {
		topics[m.cfg.SharedTopic] = domain.TopicShared
	}
	return topics
}

func sortedTopics(topics map[string]domain.TopicKind) []string {
	out := make([]string, 0, len(topics))
	for topic := range topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (m *ChannelManager) dialFinished(ctx context.Context, e dialFinished) {
	if e.attempt != m.attempt || m.identity == nil {
		if e.conn != nil {
			_ = e.conn.Close()
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if e.err != nil {
		m.fail(e.err)
		return
	}

	m.conn = e.conn
	m.failures = 0
	subs := sortedTopics(e.topics)
	m.setStatus(func(st *domain.ChannelStatus) {
		st.State = domain.ChannelConnected
		st.Subscriptions = subs
		st.LastError = ""
	})
	m.log.Info().
		Str("user_id", m.identity.ID.String()).
		Strs("topics", subs).
		Msg("notification channel connected")

	go m.pump(ctx, e.attempt, e.conn, e.topics, m.identity.ID)
}

// pump forwards frames in arrival order until the connection ends.
func (m *ChannelManager) pump(ctx context.Context, attempt uint64, conn ports.ChannelConn, topics map[string]domain.TopicKind, owner domain.ID) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Messages():
			if !ok {
				m.post(connectionLost{attempt: attempt, err: conn.Err()})
				return
			}
			kind, ok := topics[msg.Topic]
			if !ok {
				kind = domain.TopicShared
			}
			msg.Kind = kind
			msg.Owner = owner
			m.sink.Enqueue(msg)
		case <-conn.Done():
			m.post(connectionLost{attempt: attempt, err: conn.Err()})
			return
		}
	}
}

func (m *ChannelManager) fail(err error) {
	m.failures++
	m.setStatus(func(st *domain.ChannelStatus) {
		st.State = domain.ChannelDisconnected
		st.Subscriptions = nil
		st.LastError = err.Error()
	})

	if m.cfg.MaxRetries > 0 && m.failures >= m.cfg.MaxRetries {
		m.log.Error().Err(err).Int("failures", m.failures).Msg("notification channel gave up reconnecting")
		return
	}

	delay := m.retryDelay()
	m.log.Warn().Err(err).Dur("retry_in", delay).Int("failures", m.failures).Msg("notification channel disconnected")
	m.stopTimer()
	m.retryTimer = time.NewTimer(delay)
	m.retryC = m.retryTimer.C
}

func (m *ChannelManager) retryDelay() time.Duration {
	d := m.cfg.RetryDelay
	if m.cfg.MaxRetryDelay <= d {
		return d
	}
	for i := 1; i < m.failures; i++ {
		d *= 2
		if d >= m.cfg.MaxRetryDelay {
			return m.cfg.MaxRetryDelay
		}
	}
	return d
}

func (m *ChannelManager) retryElapsed(ctx context.Context) {
	m.retryTimer = nil
	if m.identity == nil || m.conn != nil {
		return
	}
	if !m.session.Authenticated() {
		m.teardown("session no longer authenticated")
		return
	}
	m.connect(ctx)
}

// teardown closes everything and forgets the identity. Results of dials
// already in flight are discarded when they arrive.
func (m *ChannelManager) teardown(reason string) {
	wasActive := m.identity != nil
	m.attempt++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.stopTimer()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil && !errors.Is(err, domain.ErrChannelClosed) {
			m.log.Debug().Err(err).Msg("closing notification channel")
		}
		m.conn = nil
	}
	m.identity = nil
	m.failures = 0
	m.setStatus(func(st *domain.ChannelStatus) {
		st.State = domain.ChannelDisconnected
		st.Attempts = 0
		st.Subscriptions = nil
	})
	if wasActive {
		m.log.Info().Str("reason", reason).Msg("notification channel torn down")
	}
}

func (m *ChannelManager) stopTimer() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retryC = nil
}

func (m *ChannelManager) setStatus(fn func(*domain.ChannelStatus)) {
	m.statusMu.Lock()
	fn(&m.status)
	snapshot := m.status
	snapshot.Subscriptions = append([]string(nil), m.status.Subscriptions...)
	m.statusMu.Unlock()

	if m.onChange != nil {
		m.onChange(snapshot)
	}
}
