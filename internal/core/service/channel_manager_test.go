package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	testRetryDelay = 20 * time.Millisecond
	waitFor        = 2 * time.Second
	tick           = 5 * time.Millisecond
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeConn struct {
	msgs chan domain.ChannelMessage
	done chan struct{}

	mu     sync.Mutex
	topics []string
	closed bool
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan domain.ChannelMessage, 8), done: make(chan struct{})}
}

func (c *fakeConn) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return nil
}

func (c *fakeConn) Messages() <-chan domain.ChannelMessage { return c.msgs }
func (c *fakeConn) Done() <-chan struct{}                  { return c.done }
func (c *fakeConn) Err() error                             { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

type fakeTransport struct {
	mu     sync.Mutex
	dials  int
	at     []time.Time
	tokens []string
	conns  []*fakeConn
	fail   error
}

func (t *fakeTransport) Dial(_ context.Context, token string) (ports.ChannelConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	t.at = append(t.at, time.Now())
	t.tokens = append(t.tokens, token)
	if t.fail != nil {
		return nil, t.fail
	}
	conn := newFakeConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) DialTimes() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.at...)
}

func (t *fakeTransport) Tokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.tokens...)
}

func (t *fakeTransport) Conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.conns) {
		return nil
	}
	return t.conns[i]
}

func (t *fakeTransport) SetFail(err error) {
	t.mu.Lock()
	t.fail = err
	t.mu.Unlock()
}

// slowTransport holds every dial until release is closed, whatever the
// context says.
type slowTransport struct {
	dialing chan struct{}
	release chan struct{}

	mu    sync.Mutex
	conns []*fakeConn
}

func newSlowTransport() *slowTransport {
	return &slowTransport{dialing: make(chan struct{}, 1), release: make(chan struct{})}
}

func (t *slowTransport) Dial(context.Context, string) (ports.ChannelConn, error) {
	select {
	case t.dialing <- struct{}{}:
	default:
	}
	<-t.release
	conn := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *slowTransport) allClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return false
	}
	for _, c := range t.conns {
		if !c.Closed() {
			return false
		}
	}
	return true
}

type fakeSession struct {
	mu       sync.Mutex
	identity *domain.Identity
	token    string
	listener func(domain.SessionEvent)
}

func (s *fakeSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) CurrentIdentity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	return s.identity.Clone()
}

func (s *fakeSession) HasAnyRole(roles ...domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return false
	}
	return len(roles) == 0 || s.identity.HasAnyRole(roles...)
}

func (s *fakeSession) Subscribe(fn func(domain.SessionEvent)) func() {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
	}
}

func (s *fakeSession) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

func (s *fakeSession) login(identity *domain.Identity, token string) {
	s.mu.Lock()
	s.identity = identity
	s.token = token
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(domain.SessionEvent{Kind: domain.SessionAuthenticated, Identity: identity.Clone()})
	}
}

func (s *fakeSession) logout() {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(domain.SessionEvent{Kind: domain.SessionCleared, Reason: "logout"})
	}
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []domain.ChannelMessage
}

func (s *recordingSink) Enqueue(msg domain.ChannelMessage) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *recordingSink) Messages() []domain.ChannelMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChannelMessage(nil), s.msgs...)
}

type managerHarness struct {
	transport *fakeTransport
	session   *fakeSession
	sink      *recordingSink
	manager   *ChannelManager
	cancel    context.CancelFunc
	done      chan struct{}
}

func startManager(t *testing.T, session *fakeSession, cfg ChannelConfig) *managerHarness {
	t.Helper()
	h := &managerHarness{
		transport: &fakeTransport{},
		session:   session,
		sink:      &recordingSink{},
		done:      make(chan struct{}),
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = testRetryDelay
	}
	h.manager = NewChannelManager(h.transport, session, h.sink, cfg, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		_ = h.manager.Run(ctx)
	}()
	require.Eventually(t, session.subscribed, waitFor, tick)

	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *managerHarness) connected() bool {
	return h.manager.Status().State == domain.ChannelConnected
}

func seeker() *domain.Identity {
	return &domain.Identity{ID: "7", Username: "alice", Roles: []domain.Role{domain.RoleUser}}
}

func provider() *domain.Identity {
	return &domain.Identity{ID: "12", Username: "bob", Roles: []domain.Role{domain.RoleProvider}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestChannelManager_StaysIdleWithoutSession(t *testing.T) {
	h := startManager(t, &fakeSession{}, ChannelConfig{})

	time.Sleep(5 * testRetryDelay)
	assert.Equal(t, 0, h.transport.Dials())
	assert.Equal(t, domain.ChannelDisconnected, h.manager.Status().State)
}

func TestChannelManager_ConnectsOnStartupWhenAuthenticated(t *testing.T) {
	session := &fakeSession{identity: seeker(), token: "tok-1"}
	h := startManager(t, session, ChannelConfig{})

	require.Eventually(t, h.connected, waitFor, tick)
	assert.Equal(t, []string{"/user/7/notifications"}, h.transport.Conn(0).Topics())
	assert.Equal(t, []string{"/user/7/notifications"}, h.manager.Status().Subscriptions)
	assert.Equal(t, []string{"tok-1"}, h.transport.Tokens())
}

func TestChannelManager_ProviderAlsoSubscribesSharedTopic(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(provider(), "tok-p")
	require.Eventually(t, h.connected, waitFor, tick)

	assert.ElementsMatch(t,
		[]string{"/user/12/notifications", "/topic/service-requests"},
		h.transport.Conn(0).Topics())
}

func TestChannelManager_ForwardsFramesStampedWithOwner(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(provider(), "tok-p")
	require.Eventually(t, h.connected, waitFor, tick)

	conn := h.transport.Conn(0)
	conn.msgs <- domain.ChannelMessage{Topic: "/user/12/notifications", Body: []byte(`{"id":1}`)}
	conn.msgs <- domain.ChannelMessage{Topic: "/topic/service-requests", Body: []byte(`{"type":"NEW"}`)}

	require.Eventually(t, func() bool { return len(h.sink.Messages()) == 2 }, waitFor, tick)
	msgs := h.sink.Messages()
	assert.Equal(t, domain.TopicPrivate, msgs[0].Kind)
	assert.Equal(t, domain.ID("12"), msgs[0].Owner)
	assert.Equal(t, domain.TopicShared, msgs[1].Kind)
}

func TestChannelManager_LogoutClosesConnectionAndStopsDialing(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(seeker(), "tok-1")
	require.Eventually(t, h.connected, waitFor, tick)
	conn := h.transport.Conn(0)

	session.logout()
	require.Eventually(t, conn.Closed, waitFor, tick)
	require.Eventually(t, func() bool { return !h.connected() }, waitFor, tick)

	time.Sleep(5 * testRetryDelay)
	assert.Equal(t, 1, h.transport.Dials())
	st := h.manager.Status()
	assert.Equal(t, domain.ChannelDisconnected, st.State)
	assert.Empty(t, st.Subscriptions)
	assert.Zero(t, st.Attempts)
}

func TestChannelManager_RetriesAtFixedIntervalUntilLogout(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})
	h.transport.SetFail(errors.New("connection refused"))

	session.login(seeker(), "tok-1")
	require.Eventually(t, func() bool { return h.transport.Dials() >= 4 }, waitFor, tick)
	assert.Equal(t, "connection refused", h.manager.Status().LastError)

	times := h.transport.DialTimes()
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), testRetryDelay, "gap before dial %d", i+1)
	}
	elapsed := time.Since(times[0])
	assert.LessOrEqual(t, len(times), int(elapsed/testRetryDelay)+1)

	session.logout()
	require.Eventually(t, func() bool { return h.manager.Status().Attempts == 0 }, waitFor, tick)

	settled := h.transport.Dials()
	time.Sleep(5 * testRetryDelay)
	assert.Equal(t, settled, h.transport.Dials())
}

func TestChannelManager_MaxRetriesStopsReconnecting(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{MaxRetries: 3})
	h.transport.SetFail(errors.New("connection refused"))

	session.login(seeker(), "tok-1")
	require.Eventually(t, func() bool { return h.transport.Dials() == 3 }, waitFor, tick)

	time.Sleep(5 * testRetryDelay)
	assert.Equal(t, 3, h.transport.Dials())
	assert.Equal(t, domain.ChannelDisconnected, h.manager.Status().State)
}

func TestChannelManager_SignInAgainAfterGivingUpReconnects(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{MaxRetries: 2})
	h.transport.SetFail(errors.New("connection refused"))

	session.login(seeker(), "tok-1")
	require.Eventually(t, func() bool { return h.transport.Dials() == 2 }, waitFor, tick)
	time.Sleep(5 * testRetryDelay)
	require.Equal(t, 2, h.transport.Dials())
	require.Equal(t, domain.ChannelDisconnected, h.manager.Status().State)

	h.transport.SetFail(nil)
	session.login(seeker(), "tok-2")

	require.Eventually(t, func() bool { return h.transport.Dials() == 3 && h.connected() }, waitFor, tick)
	assert.Equal(t, "tok-2", h.transport.Tokens()[2])
}

func TestChannelManager_SameUserSignInWhileConnectedKeepsConnection(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(seeker(), "tok-1")
	require.Eventually(t, h.connected, waitFor, tick)

	session.login(seeker(), "tok-1")
	time.Sleep(5 * testRetryDelay)
	assert.Equal(t, 1, h.transport.Dials())
	assert.False(t, h.transport.Conn(0).Closed())
}

func TestChannelManager_DialCompletingAfterShutdownIsClosed(t *testing.T) {
	session := &fakeSession{identity: seeker(), token: "tok-1"}
	transport := newSlowTransport()
	manager := NewChannelManager(transport, session, &recordingSink{}, ChannelConfig{RetryDelay: testRetryDelay}, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = manager.Run(ctx)
	}()

	select {
	case <-transport.dialing:
	case <-time.After(waitFor):
		t.Fatalf("dial never started")
	}
	cancel()
	<-done

	close(transport.release)
	require.Eventually(t, transport.allClosed, waitFor, tick)
	assert.Equal(t, domain.ChannelDisconnected, manager.Status().State)
}

func TestChannelManager_ShutdownReleasesQueuedAndLateResults(t *testing.T) {
	m := NewChannelManager(&fakeTransport{}, &fakeSession{}, &recordingSink{}, ChannelConfig{}, zerolog.Nop(), nil)

	queued := newFakeConn()
	m.post(dialFinished{attempt: 1, conn: queued})
	m.shutdown()
	assert.True(t, queued.Closed())

	late := newFakeConn()
	m.post(dialFinished{attempt: 2, conn: late})
	assert.True(t, late.Closed())
}

func TestChannelManager_ReconnectsAfterConnectionLoss(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(seeker(), "tok-1")
	require.Eventually(t, h.connected, waitFor, tick)

	h.transport.Conn(0).drop()
	require.Eventually(t, func() bool { return h.transport.Dials() == 2 && h.connected() }, waitFor, tick)
	assert.Equal(t, []string{"/user/7/notifications"}, h.transport.Conn(1).Topics())
}

func TestChannelManager_IdentityChangeResubscribes(t *testing.T) {
	session := &fakeSession{}
	h := startManager(t, session, ChannelConfig{})

	session.login(seeker(), "tok-1")
	require.Eventually(t, h.connected, waitFor, tick)
	first := h.transport.Conn(0)

	session.login(provider(), "tok-2")
	require.Eventually(t, func() bool { return h.transport.Dials() == 2 && h.connected() }, waitFor, tick)

	assert.True(t, first.Closed())
	assert.Contains(t, h.transport.Conn(1).Topics(), "/user/12/notifications")
}

func TestChannelManager_ShutdownClosesConnection(t *testing.T) {
	session := &fakeSession{identity: seeker(), token: "tok-1"}
	h := startManager(t, session, ChannelConfig{})
	require.Eventually(t, h.connected, waitFor, tick)

	h.cancel()
	<-h.done
	assert.True(t, h.transport.Conn(0).Closed())
}

func TestChannelConfig_RetryDelayDoubling(t *testing.T) {
	m := &ChannelManager{cfg: ChannelConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second}}

	var got []time.Duration
	for m.failures = 1; m.failures <= 5; m.failures++ {
		got = append(got, m.retryDelay())
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, got)

	fixed := &ChannelManager{cfg: ChannelConfig{RetryDelay: time.Second}.withDefaults()}
	fixed.failures = 4
	assert.Equal(t, time.Second, fixed.retryDelay())
}
