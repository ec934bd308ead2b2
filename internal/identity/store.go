package identity

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"collabboard-api/internal/models"
)

// Status is the auth lifecycle state the UI renders against.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is the immutable snapshot listeners observe. A new value is swapped
// in atomically on every transition.
type State struct {
	Status      Status
	User        *models.Profile
	AccessToken string
}

// ErrSessionInvalid is the provider's explicit "this session is dead" answer,
// as opposed to a transport failure.
var ErrSessionInvalid = errors.New("session invalid")

// Provider is the identity backend the store validates sessions against.
type Provider interface {
	// ValidateSession checks the token and returns the profile it belongs to.
	// Must return ErrSessionInvalid for rejected sessions; any other error is
	// treated as a transient failure.
	ValidateSession(ctx context.Context, token string) (*models.Profile, error)
	// LoadProfile fetches the extended profile after authentication.
	LoadProfile(ctx context.Context, userID string) (*models.Profile, error)
	// SignOut revokes the session server-side.
	SignOut(ctx context.Context, token string) error
}

// CachedSession is a session restored from local storage before validation.
type CachedSession struct {
	Token string
	User  *models.Profile
}

// AuthEventKind classifies provider-originated state transitions.
type AuthEventKind string

const (
	EventSignedOut      AuthEventKind = "signed_out"
	EventTokenRefreshed AuthEventKind = "token_refreshed"
	EventInitialSession AuthEventKind = "initial_session"
)

// AuthEvent is one identity-provider state transition fed into the store.
type AuthEvent struct {
	Kind  AuthEventKind
	Token string
}

func defaultTimeout() time.Duration {
	if v := os.Getenv("IDENTITY_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 10 * time.Second
}

// Store is the singleton auth state machine. State transitions are
// serialized under the mutex; listeners are dispatched outside it so a slow
// listener cannot wedge the store.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int

	provider Provider
	timeout  time.Duration

	// readSession restores the cached session, if any.
	readSession func() (CachedSession, bool)
	// purge callbacks clear per-user cached artifacts on sign-out.
	purge []func()
	// teardown closes realtime channels on sign-out.
	teardown func(userID string)

	inflight chan struct{} // non-nil while an Initialize is running
	done     bool          // set once Initialize has completed
}

// Option configures a Store at construction.
type Option func(*Store)

// WithTimeout overrides the session-validation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithSessionReader supplies the cached-session source.
func WithSessionReader(fn func() (CachedSession, bool)) Option {
	return func(s *Store) { s.readSession = fn }
}

// WithPurge registers a per-user cache to clear on sign-out.
func WithPurge(fn func()) Option {
	return func(s *Store) { s.purge = append(s.purge, fn) }
}

// WithTeardown registers the realtime-channel teardown run on sign-out.
func WithTeardown(fn func(userID string)) Option {
	return func(s *Store) { s.teardown = fn }
}

// NewStore constructs a store in the loading state.
func NewStore(provider Provider, opts ...Option) *Store {
	s := &Store{
		state:       State{Status: StatusLoading},
		listeners:   make(map[int]func(State)),
		provider:    provider,
		timeout:     defaultTimeout(),
		readSession: func() (CachedSession, bool) { return CachedSession{}, false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener for state changes and returns an
// unsubscribe function. The listener is not called with the current state.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// setState swaps the state and notifies listeners outside the lock.
// When notify is false the swap is silent (token refresh).
func (s *Store) setState(next State, notify bool) {
	s.mu.Lock()
	s.state = next
	var fns []func(State)
	if notify {
		fns = make([]func(State), 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Initialize resolves the cached session into a terminal status. Idempotent:
// concurrent callers share one in-flight run, later callers return
// immediately.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if s.inflight != nil {
		ch := s.inflight
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
		}
		return
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.done = true
		s.inflight = nil
		s.mu.Unlock()
		close(ch)
	}()

	cached, ok := s.readSession()
	if !ok {
		s.setState(State{Status: StatusUnauthenticated}, true)
		return
	}

	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.provider.ValidateSession(vctx, cached.Token)
	switch {
	case err == nil:
		s.setState(State{Status: StatusAuthenticated, User: user, AccessToken: cached.Token}, true)
		go s.loadExtendedProfile(user.ID)
	case errors.Is(err, ErrSessionInvalid):
		s.setState(State{Status: StatusUnauthenticated}, true)
	default:
		// Transient failure or timeout: a failed probe must not lock out a
		// user who holds valid cookies. Fall back to the cached user.
		if cached.User != nil {
			log.Printf("identity: validation failed (%v), using cached session", err)
			s.setState(State{Status: StatusAuthenticated, User: cached.User, AccessToken: cached.Token}, true)
		} else {
			s.setState(State{Status: StatusUnauthenticated}, true)
		}
	}
}

// loadExtendedProfile swaps in the full profile without leaving
// authenticated. Failures keep the validated profile.
func (s *Store) loadExtendedProfile(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	profile, err := s.provider.LoadProfile(ctx, userID)
	if err != nil {
		log.Printf("identity: extended profile load failed: %v", err)
		return
	}

	s.mu.Lock()
	if s.state.Status != StatusAuthenticated || s.state.User == nil || s.state.User.ID != userID {
		s.mu.Unlock()
		return
	}
	next := s.state
	next.User = profile
	s.mu.Unlock()

	s.setState(next, true)
}

// RefreshUser re-validates the current session; used on bfcache restore. An
// explicit invalid session transitions to unauthenticated; transient
// failures keep the current state.
func (s *Store) RefreshUser(ctx context.Context) {
	st := s.State()
	if st.Status != StatusAuthenticated {
		return
	}

	vctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.provider.ValidateSession(vctx, st.AccessToken)
	if errors.Is(err, ErrSessionInvalid) {
		s.signOutLocally(st)
		return
	}
	if err != nil {
		log.Printf("identity: refresh failed: %v", err)
		return
	}
	next := st
	next.User = user
	s.setState(next, true)
}

// HandleAuthEvent applies a provider-originated transition. Signed-out only
// resets when the store believes it is authenticated; token refresh updates
// the token silently; the provider's initial-session event is ignored
// because the store owns initialization.
func (s *Store) HandleAuthEvent(evt AuthEvent) {
	switch evt.Kind {
	case EventSignedOut:
		st := s.State()
		if st.Status == StatusAuthenticated {
			s.signOutLocally(st)
		}
	case EventTokenRefreshed:
		s.mu.Lock()
		if s.state.Status == StatusAuthenticated {
			s.state.AccessToken = evt.Token
		}
		s.mu.Unlock()
	case EventInitialSession:
		// ignored; Initialize owns the first transition
	}
}

// SignOut purges per-user artifacts, tears down realtime channels, then
// revokes the session with the provider.
func (s *Store) SignOut(ctx context.Context) {
	st := s.State()
	s.signOutLocally(st)

	if st.AccessToken != "" {
		if err := s.provider.SignOut(ctx, st.AccessToken); err != nil {
			log.Printf("identity: provider sign-out failed: %v", err)
		}
	}
}

func (s *Store) signOutLocally(st State) {
	for _, fn := range s.purge {
		fn()
	}
	if s.teardown != nil && st.User != nil {
		s.teardown(st.User.ID)
	}
	s.setState(State{Status: StatusUnauthenticated}, true)
}
