package session_test

import (
	"testing"
	"time"

	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/credentials/backendfake"
	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/identity/storefake"
	"github.com/mycoding/go-session/session"
	"github.com/mycoding/go-session/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretStr         = "test-secret"
	testAdminEmail    = "admin@mycoding.com"
	testAdminPassword = "admin123"
	testUserEmail     = "user@mycoding.com"
	testUserPassword  = "user123"
)

// testFixture holds all test dependencies
type testFixture struct {
	identities *storefake.FakeIdentityStore
	backend    *backendfake.FakeBackend
	creds      *credentials.Store
	codec      *token.Codec
	service    *session.Service
	now        time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	f.identities = storefake.NewFakeIdentityStore()
	require.NoError(t, f.identities.SeedDefaults())

	f.backend = backendfake.NewFakeBackend()
	f.creds = credentials.NewStore(f.backend, credentials.WithNowTime(nowFunc))
	f.codec = token.NewCodec(secretStr, token.WithNowTime(nowFunc))

	service, err := session.NewService(f.identities, f.creds, f.codec,
		session.WithNowTime(nowFunc),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) login(t *testing.T, email, password string) *session.AuthResult {
	t.Helper()

	result, err := f.service.Login(session.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	f.creds.SetTokens(result.Tokens)
	return result
}

func TestLoginSuccess(t *testing.T) {
	f := setupTestFixture(t)

	result, err := f.service.Login(session.Credentials{Email: testAdminEmail, Password: testAdminPassword})
	require.NoError(t, err)

	assert.Equal(t, identity.RoleAdmin, result.User.Role)
	assert.Equal(t, testAdminEmail, result.User.Email)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Equal(t, 3600, result.Tokens.ExpiresIn)
	assert.True(t, f.service.ValidateToken(result.Tokens.AccessToken))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(session.Credentials{Email: testAdminEmail, Password: "wrong"})
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeInvalidCredentials, authErr.Code)

	_, err = f.service.Login(session.Credentials{Email: "nobody@mycoding.com", Password: "whatever"})
	authErr, ok = session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeInvalidCredentials, authErr.Code)
}

// faultyIdentityStore simulates an unreachable identity backend.
type faultyIdentityStore struct {
	identity.Store
}

func (faultyIdentityStore) FindByCredentials(email, password string) (*identity.User, error) {
	return nil, errors.New("connection reset")
}

func TestLoginStoreFaultIsNotCredentialError(t *testing.T) {
	f := setupTestFixture(t)

	service, err := session.NewService(faultyIdentityStore{Store: f.identities}, f.creds, f.codec)
	require.NoError(t, err)

	_, err = service.Login(session.Credentials{Email: testAdminEmail, Password: testAdminPassword})
	require.Error(t, err)

	// INVALID_CREDENTIALS is reserved for a failed match, not for an
	// unreachable store.
	_, ok := session.AsAuthError(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "FindByCredentials")
}

func TestRegisterPasswordMismatchFailsFast(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Register(session.Registration{
		Name:            "New User",
		Email:           "new@mycoding.com",
		Password:        "abc123",
		ConfirmPassword: "xyz987",
	})
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodePasswordMismatch, authErr.Code)

	// The mismatch must be detected before any identity store lookup.
	assert.Zero(t, f.identities.ExistsByEmailCallCount)
	assert.Zero(t, f.identities.FindByCredentialsCallCount)
	assert.Zero(t, f.identities.CreateCallCount)
}

func TestRegisterEmailExists(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Register(session.Registration{
		Name:            "Dup",
		Email:           testAdminEmail,
		Password:        "abc123",
		ConfirmPassword: "abc123",
	})
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeEmailExists, authErr.Code)
	assert.Zero(t, f.identities.CreateCallCount)
}

func TestRegisterSuccess(t *testing.T) {
	f := setupTestFixture(t)

	result, err := f.service.Register(session.Registration{
		Name:            "New User",
		Email:           "new@mycoding.com",
		Password:        "abc123",
		ConfirmPassword: "abc123",
	})
	require.NoError(t, err)

	assert.Equal(t, identity.RoleUser, result.User.Role, "registrations always create regular users")
	assert.Equal(t, "New User", result.User.Name)
	assert.NotEmpty(t, result.User.ID)

	// The new identity can log in with the registered password.
	_, err = f.service.Login(session.Credentials{Email: "new@mycoding.com", Password: "abc123"})
	require.NoError(t, err)
}

func TestGetCurrentUser(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.GetCurrentUser()
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeNoToken, authErr.Code)

	f.login(t, testUserEmail, testUserPassword)
	profile, err := f.service.GetCurrentUser()
	require.NoError(t, err)
	assert.Equal(t, testUserEmail, profile.Email)
	assert.Equal(t, identity.RoleUser, profile.Role)
}

func TestGetCurrentUserInvalidToken(t *testing.T) {
	f := setupTestFixture(t)

	f.creds.SetTokens(credentials.Pair{AccessToken: "garbage", RefreshToken: "garbage", ExpiresIn: 3600})
	_, err := f.service.GetCurrentUser()
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeInvalidToken, authErr.Code)
}

func TestGetCurrentUserStaleIdentity(t *testing.T) {
	f := setupTestFixture(t)

	f.login(t, testUserEmail, testUserPassword)
	require.NoError(t, f.identities.Delete(testUserEmail))

	_, err := f.service.GetCurrentUser()
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeUserNotFound, authErr.Code)
}

func TestRefreshTokenRotatesPair(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t, testUserEmail, testUserPassword)

	f.now = f.now.Add(30 * time.Minute)
	pair, err := f.service.RefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, result.Tokens.AccessToken, pair.AccessToken)
	assert.NotEqual(t, result.Tokens.RefreshToken, pair.RefreshToken)
	assert.True(t, f.service.ValidateToken(pair.AccessToken))
}

func TestRefreshTokenFailures(t *testing.T) {
	f := setupTestFixture(t)

	// No refresh token stored.
	_, err := f.service.RefreshToken()
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeNoRefreshToken, authErr.Code)

	// An access token presented in the refresh slot must be rejected.
	result := f.login(t, testUserEmail, testUserPassword)
	f.creds.SetTokens(credentials.Pair{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.AccessToken,
		ExpiresIn:    3600,
	})
	_, err = f.service.RefreshToken()
	authErr, ok = session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeInvalidRefreshToken, authErr.Code)

	// Expired refresh token.
	f.creds.SetTokens(result.Tokens)
	f.now = f.now.Add(8 * 24 * time.Hour)
	_, err = f.service.RefreshToken()
	authErr, ok = session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeInvalidRefreshToken, authErr.Code)
}

func TestRefreshTokenStaleIdentity(t *testing.T) {
	f := setupTestFixture(t)

	f.login(t, testUserEmail, testUserPassword)
	require.NoError(t, f.identities.Delete(testUserEmail))

	_, err := f.service.RefreshToken()
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeUserNotFound, authErr.Code)
}

type recordingNotifier struct {
	userIDs []string
	err     error
}

func (n *recordingNotifier) NotifyLogout(userID string) error {
	n.userIDs = append(n.userIDs, userID)
	return n.err
}

func TestLogoutIsBestEffort(t *testing.T) {
	f := setupTestFixture(t)

	notifier := &recordingNotifier{err: assert.AnError}
	service, err := session.NewService(f.identities, f.creds, f.codec, session.WithNotifier(notifier))
	require.NoError(t, err)

	// Must not panic or propagate the notifier failure.
	service.Logout("user-1")
	require.Equal(t, []string{"user-1"}, notifier.userIDs)
}

func TestForgotPassword(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.service.ForgotPassword(session.ForgotPasswordRequest{Email: testUserEmail}))

	err := f.service.ForgotPassword(session.ForgotPasswordRequest{Email: "nobody@mycoding.com"})
	authErr, ok := session.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, session.CodeUserNotFound, authErr.Code)
}

func TestValidateToken(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t, testUserEmail, testUserPassword)

	assert.True(t, f.service.ValidateToken(result.Tokens.AccessToken))
	assert.False(t, f.service.ValidateToken(result.Tokens.RefreshToken), "refresh tokens are not valid access tokens")
	assert.False(t, f.service.ValidateToken("garbage"))

	f.now = f.now.Add(2 * time.Hour)
	assert.False(t, f.service.ValidateToken(result.Tokens.AccessToken), "expired tokens fail validation")
}
