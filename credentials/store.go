package credentials

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Storage keys. These names are part of the persisted contract and must
// not change between releases.
const (
	accessTokenKey  = "mycoding_access_token"
	refreshTokenKey = "mycoding_refresh_token"
	tokenExpiryKey  = "mycoding_token_expiry"
)

// Pair is the credential tuple returned by the session service on
// login, register, and refresh.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds until the access token expires
}

// Store persists the current credential pair plus the absolute expiry
// instant computed at write time. Persistence is best-effort: backend
// failures are logged and swallowed, and getters degrade to absent
// values, so callers never have to handle a storage error.
type Store struct {
	backend Backend
	nowTime func() time.Time
	logger  zerolog.Logger
	lock    sync.Mutex
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(backend Backend, options ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		nowTime: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// SetTokens writes the access token, refresh token, and computed
// absolute expiry (epoch milliseconds) as one atomic backend write.
func (s *Store) SetTokens(pair Pair) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries := s.load()
	expiry := s.nowTime().Add(time.Duration(pair.ExpiresIn) * time.Second)
	entries[accessTokenKey] = pair.AccessToken
	entries[refreshTokenKey] = pair.RefreshToken
	entries[tokenExpiryKey] = strconv.FormatInt(expiry.UnixMilli(), 10)

	if err := s.backend.Store(entries); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist credential pair")
	}
}

// GetAccessToken returns the stored access token, or "" if none is
// persisted or the backend is unavailable.
func (s *Store) GetAccessToken() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.load()[accessTokenKey]
}

// GetRefreshToken returns the stored refresh token, or "" if absent.
func (s *Store) GetRefreshToken() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.load()[refreshTokenKey]
}

// ClearTokens removes all three entries. Idempotent.
func (s *Store) ClearTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries := s.load()
	delete(entries, accessTokenKey)
	delete(entries, refreshTokenKey)
	delete(entries, tokenExpiryKey)

	if err := s.backend.Store(entries); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear credential pair")
	}
}

// IsTokenExpired reports whether the stored expiry has passed. An
// unknown or unreadable expiry counts as expired.
func (s *Store) IsTokenExpired() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	expiry, ok := s.expiry()
	if !ok {
		return true
	}
	return !expiry.After(s.nowTime())
}

// HasValidToken reports whether an access token is present and not expired.
func (s *Store) HasValidToken() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.load()[accessTokenKey] == "" {
		return false
	}
	expiry, ok := s.expiry()
	if !ok {
		return false
	}
	return expiry.After(s.nowTime())
}

// TimeUntilExpiry returns the remaining access token lifetime, or 0 if
// the expiry is unknown or already passed.
func (s *Store) TimeUntilExpiry() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()

	expiry, ok := s.expiry()
	if !ok {
		return 0
	}
	remaining := expiry.Sub(s.nowTime())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Store) load() map[string]string {
	entries, err := s.backend.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read credential storage")
		return map[string]string{}
	}
	if entries == nil {
		return map[string]string{}
	}
	return entries
}

func (s *Store) expiry() (time.Time, bool) {
	raw := s.load()[tokenExpiryKey]
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn().Str("value", raw).Msg("unreadable token expiry entry")
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
