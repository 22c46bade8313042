package lifecycle

import (
	"sync"
	"time"

	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/internal/metrics"
	"github.com/mycoding/go-session/session"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const defaultRefreshLead = 5 * time.Minute

// Manager is the session state machine. It owns the reactive session
// state, orchestrates the credential store and session service, and
// keeps at most one refresh timer pending while authenticated.
//
// Login and Register deliberately return nothing: failure is observable
// only through State().Err, so no caller ever has to handle a raised
// error from an action. Construct one Manager per application root and
// inject it explicitly.
type Manager struct {
	service     *session.Service
	creds       *credentials.Store
	scheduler   Scheduler
	refreshLead time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	lock          sync.Mutex
	state         State
	subs          map[int]func(State)
	nextSubID     int
	cancelRefresh CancelFunc
	epoch         uint64
	closed        bool
	startOnce     sync.Once
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithScheduler replaces the production timer scheduler (primarily for
// testing with a simulated clock).
func WithScheduler(scheduler Scheduler) ManagerOption {
	return func(m *Manager) {
		m.scheduler = scheduler
	}
}

// WithRefreshLead sets how long before token expiry the background
// refresh fires.
func WithRefreshLead(lead time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshLead = lead
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(bundle *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = bundle
	}
}

// NewManager initializes a new Manager with required dependencies.
func NewManager(service *session.Service, creds *credentials.Store, options ...ManagerOption) (*Manager, error) {
	if service == nil {
		return nil, errors.New("[NewManager] session service is required")
	}
	if creds == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}

	m := &Manager{
		service:     service,
		creds:       creds,
		scheduler:   TimerScheduler{},
		refreshLead: defaultRefreshLead,
		logger:      zerolog.Nop(),
		subs:        make(map[int]func(State)),
		state: State{
			Status:    StatusInitializing,
			IsLoading: true,
		},
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Start runs the mount transition: restore the session from stored
// credentials if a non-expired access token exists, otherwise settle
// into the unauthenticated steady state. Runs at most once.
func (m *Manager) Start() {
	m.startOnce.Do(m.initialize)
}

func (m *Manager) initialize() {
	if m.creds.HasValidToken() {
		profile, err := m.service.GetCurrentUser()
		if err == nil {
			m.completeAuth(profile)
			return
		}
		// A rejected stored token at startup is expected steady state,
		// not a reportable failure.
		m.logger.Debug().Err(err).Msg("stored credentials rejected at startup")
		m.creds.ClearTokens()
	}
	m.commit(toUnauthenticated)
}

// Login authenticates and transitions to authenticated on success. On
// failure the error lands in State().Err and the machine stays
// unauthenticated; Login itself never reports it.
func (m *Manager) Login(creds session.Credentials) {
	m.beginAction()

	result, err := m.service.Login(creds)
	if err != nil {
		m.countResult(m.loginsVec(), metrics.ResultFailure)
		m.failAction(err)
		return
	}

	m.creds.SetTokens(result.Tokens)
	m.countResult(m.loginsVec(), metrics.ResultSuccess)
	m.completeAuth(result.User)
}

// Register creates an account and logs it in. Same non-reporting
// contract as Login.
func (m *Manager) Register(reg session.Registration) {
	m.beginAction()

	result, err := m.service.Register(reg)
	if err != nil {
		m.countResult(m.registrationsVec(), metrics.ResultFailure)
		m.failAction(err)
		return
	}

	m.creds.SetTokens(result.Tokens)
	m.countResult(m.registrationsVec(), metrics.ResultSuccess)
	m.completeAuth(result.User)
}

// Logout notifies the service best-effort, then unconditionally clears
// credentials, cancels any pending refresh, and resets the state.
func (m *Manager) Logout() {
	st := m.commit(func(st *State) {
		st.IsLoading = true
	})

	var userID string
	if st.User != nil {
		userID = st.User.ID
	}
	m.service.Logout(userID)

	m.cancelScheduledRefresh()
	m.creds.ClearTokens()
	m.commit(toUnauthenticated)
}

// RefreshToken rotates the credential pair. Invoked by the scheduler;
// a failure here is an expected end-of-session transition, so it
// triggers the logout path instead of surfacing an error.
func (m *Manager) RefreshToken() {
	m.lock.Lock()
	epoch := m.epoch
	m.lock.Unlock()

	m.refresh(epoch)
}

// refresh performs the rotation for the session identified by epoch.
// The epoch is checked again after the service call returns: a logout
// (or re-login) that settled while the refresh was in flight has
// already cleared or replaced the stored pair, and a stale result must
// not resurrect it or schedule a new timer.
func (m *Manager) refresh(epoch uint64) {
	pair, err := m.service.RefreshToken()

	m.lock.Lock()
	if m.epoch != epoch || m.closed {
		m.lock.Unlock()
		m.logger.Debug().Msg("discarding refresh outcome, session ended while refreshing")
		return
	}
	if err != nil {
		m.lock.Unlock()
		m.logger.Info().Err(err).Msg("token refresh failed, ending session")
		m.countResult(m.refreshesVec(), metrics.ResultFailure)
		m.Logout()
		return
	}

	m.creds.SetTokens(pair)
	m.scheduleRefreshLocked()
	m.lock.Unlock()

	m.countResult(m.refreshesVec(), metrics.ResultSuccess)
}

// ClearError clears the error fields without touching the user.
func (m *Manager) ClearError() {
	m.commit(func(st *State) {
		st.Err = ""
		st.ErrCode = ""
	})
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Subscribe registers a callback invoked with a snapshot after every
// committed transition. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.lock.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.lock.Unlock()

	return func() {
		m.lock.Lock()
		delete(m.subs, id)
		m.lock.Unlock()
	}
}

// Close cancels any pending refresh timer and stops future scheduling.
func (m *Manager) Close() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.closed = true
	if m.cancelRefresh != nil {
		m.cancelRefresh()
		m.cancelRefresh = nil
	}
}

func (m *Manager) beginAction() {
	m.commit(func(st *State) {
		st.IsLoading = true
		st.Err = ""
		st.ErrCode = ""
	})
}

func (m *Manager) failAction(err error) {
	// A failed action never leaves the machine authenticated, so any
	// pending refresh timer must go with it.
	m.cancelScheduledRefresh()

	message := err.Error()
	var code session.ErrorCode
	if authErr, ok := session.AsAuthError(err); ok {
		message = authErr.Message
		code = authErr.Code
	}

	m.commit(func(st *State) {
		st.Status = StatusUnauthenticated
		st.User = nil
		st.IsLoading = false
		st.Err = message
		st.ErrCode = code
	})
}

func (m *Manager) completeAuth(profile identity.Profile) {
	m.commit(func(st *State) {
		st.Status = StatusAuthenticated
		st.User = &profile
		st.IsLoading = false
		st.Err = ""
		st.ErrCode = ""
	})
	m.scheduleRefresh()
}

// scheduleRefresh replaces any pending timer with a single new one set
// to fire refreshLead before the stored expiry.
func (m *Manager) scheduleRefresh() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.scheduleRefreshLocked()
}

// scheduleRefreshLocked requires m.lock held. Advancing the epoch here
// invalidates any refresh still in flight for the previous timer.
func (m *Manager) scheduleRefreshLocked() {
	if m.cancelRefresh != nil {
		m.cancelRefresh()
		m.cancelRefresh = nil
	}
	if m.closed {
		return
	}

	delay := m.creds.TimeUntilExpiry() - m.refreshLead
	if delay < 0 {
		delay = 0
	}
	m.epoch++
	epoch := m.epoch
	m.cancelRefresh = m.scheduler.Schedule(delay, func() { m.refresh(epoch) })
}

func (m *Manager) cancelScheduledRefresh() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.epoch++
	if m.cancelRefresh != nil {
		m.cancelRefresh()
		m.cancelRefresh = nil
	}
}

// commit applies a mutation to a copy of the state, installs it, and
// notifies subscribers with the snapshot outside the lock.
func (m *Manager) commit(mutate func(*State)) State {
	m.lock.Lock()
	st := m.state
	mutate(&st)
	m.state = st

	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.lock.Unlock()

	if m.metrics != nil {
		if st.IsAuthenticated() {
			m.metrics.AuthenticatedSessions.Set(1)
		} else {
			m.metrics.AuthenticatedSessions.Set(0)
		}
	}

	for _, fn := range subs {
		fn(st)
	}
	return st
}

func (m *Manager) loginsVec() *prometheus.CounterVec {
	if m.metrics == nil {
		return nil
	}
	return m.metrics.LoginsTotal
}

func (m *Manager) registrationsVec() *prometheus.CounterVec {
	if m.metrics == nil {
		return nil
	}
	return m.metrics.RegistrationsTotal
}

func (m *Manager) refreshesVec() *prometheus.CounterVec {
	if m.metrics == nil {
		return nil
	}
	return m.metrics.RefreshesTotal
}

func (m *Manager) countResult(vec *prometheus.CounterVec, result string) {
	if vec != nil {
		vec.WithLabelValues(result).Inc()
	}
}

func toUnauthenticated(st *State) {
	st.Status = StatusUnauthenticated
	st.User = nil
	st.IsLoading = false
	st.Err = ""
	st.ErrCode = ""
}
