package session

import (
	"time"

	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultAccessTokenExpiry  = 1 * time.Hour
	defaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Notifier receives best-effort logout notifications. Failures are
// logged and never surfaced to the caller.
type Notifier interface {
	NotifyLogout(userID string) error
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the register inputs. ConfirmPassword is checked
// before any identity lookup.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ForgotPasswordRequest asks for a password reset email.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// AuthResult carries the outcome of a successful login or register.
type AuthResult struct {
	User   identity.Profile `json:"user"`
	Tokens credentials.Pair `json:"tokens"`
}

// Service provides the stateless session operations against the
// identity store. Every domain failure is a typed *AuthError; only
// infrastructure faults (which callers treat as opaque) are wrapped
// generically.
type Service struct {
	identities         identity.Store
	creds              *credentials.Store
	codec              *token.Codec
	notifier           Notifier
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowTime            func() time.Time
	logger             zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithTokenExpiry overrides the access and refresh token lifetimes.
func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTokenExpiry = accessTokenExpiry
		s.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(identities identity.Store, creds *credentials.Store, codec *token.Codec, options ...ServiceOption) (*Service, error) {
	if identities == nil {
		return nil, errors.New("[NewService] identity store is required")
	}
	if creds == nil {
		return nil, errors.New("[NewService] credential store is required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] token codec is required")
	}

	service := &Service{
		identities:         identities,
		creds:              creds,
		codec:              codec,
		accessTokenExpiry:  defaultAccessTokenExpiry,
		refreshTokenExpiry: defaultRefreshTokenExpiry,
		nowTime:            time.Now,
		logger:             zerolog.Nop(),
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Login checks the credentials against the identity store and issues a
// fresh credential pair.
func (s *Service) Login(creds Credentials) (*AuthResult, error) {
	user, err := s.identities.FindByCredentials(creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Service.Login] FindByCredentials")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] issuePair")
	}
	return &AuthResult{User: user.Profile(), Tokens: pair}, nil
}

// Register creates a new identity and issues a credential pair. The
// password confirmation is checked before any identity lookup so a
// mismatch fails fast.
func (s *Service) Register(reg Registration) (*AuthResult, error) {
	if reg.Password != reg.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	exists, err := s.identities.ExistsByEmail(reg.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] ExistsByEmail")
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := identity.HashPassword(reg.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	user, err := s.identities.Create(&identity.User{
		Name:         reg.Name,
		Email:        reg.Email,
		Role:         identity.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] Create")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] issuePair")
	}
	return &AuthResult{User: user.Profile(), Tokens: pair}, nil
}

// GetCurrentUser resolves the identity referenced by the stored access
// token.
func (s *Service) GetCurrentUser() (identity.Profile, error) {
	raw := s.creds.GetAccessToken()
	if raw == "" {
		return identity.Profile{}, ErrNoToken
	}

	claims, class, err := s.codec.Decode(raw)
	if err != nil || class != token.ClassAccess || s.codec.Expired(claims) {
		return identity.Profile{}, ErrInvalidToken
	}

	user, err := s.identities.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Profile{}, ErrUserNotFound
		}
		return identity.Profile{}, errors.Wrap(err, "[Service.GetCurrentUser] FindByID")
	}
	return user.Profile(), nil
}

// RefreshToken mints a new credential pair from the stored refresh
// token. Both tokens rotate on every refresh.
func (s *Service) RefreshToken() (credentials.Pair, error) {
	raw := s.creds.GetRefreshToken()
	if raw == "" {
		return credentials.Pair{}, ErrNoRefreshToken
	}

	claims, class, err := s.codec.Decode(raw)
	if err != nil || class != token.ClassRefresh || !claims.IsRefresh() {
		return credentials.Pair{}, ErrInvalidRefreshToken
	}
	if s.codec.Expired(claims) {
		return credentials.Pair{}, ErrInvalidRefreshToken
	}

	user, err := s.identities.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return credentials.Pair{}, ErrUserNotFound
		}
		return credentials.Pair{}, errors.Wrap(err, "[Service.RefreshToken] FindByID")
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return credentials.Pair{}, errors.Wrap(err, "[Service.RefreshToken] issuePair")
	}
	return pair, nil
}

// Logout sends the best-effort remote notification. It never fails the
// caller, even if the notifier is unreachable.
func (s *Service) Logout(userID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLogout(userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("logout notification failed")
	}
}

// ForgotPassword queues a password reset for a known email.
func (s *Service) ForgotPassword(req ForgotPasswordRequest) error {
	exists, err := s.identities.ExistsByEmail(req.Email)
	if err != nil {
		return errors.Wrap(err, "[Service.ForgotPassword] ExistsByEmail")
	}
	if !exists {
		return ErrUserNotFound
	}

	// Mock delivery: a real deployment hands this to a mailer.
	s.logger.Info().Str("email", req.Email).Msg("password reset email queued")
	return nil
}

// ValidateToken reports whether a raw access token is well-formed,
// unexpired, and refers to an identity that still exists.
func (s *Service) ValidateToken(raw string) bool {
	claims, class, err := s.codec.Decode(raw)
	if err != nil || class != token.ClassAccess {
		return false
	}
	if s.codec.Expired(claims) {
		return false
	}
	if _, err := s.identities.FindByID(claims.UserID); err != nil {
		return false
	}
	return true
}

func (s *Service) issuePair(user *identity.User) (credentials.Pair, error) {
	now := s.nowTime()

	access, err := s.codec.Encode(token.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.accessTokenExpiry).Unix(),
	}, token.ClassAccess)
	if err != nil {
		return credentials.Pair{}, errors.Wrap(err, "[Service.issuePair] access token")
	}

	refresh, err := s.codec.Encode(token.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.refreshTokenExpiry).Unix(),
	}, token.ClassRefresh)
	if err != nil {
		return credentials.Pair{}, errors.Wrap(err, "[Service.issuePair] refresh token")
	}

	return credentials.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTokenExpiry.Seconds()),
	}, nil
}
