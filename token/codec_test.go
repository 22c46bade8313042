package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

var codecNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec(options ...token.CodecOption) *token.Codec {
	opts := append([]token.CodecOption{token.WithNowTime(func() time.Time { return codecNow })}, options...)
	return token.NewCodec(testSecret, opts...)
}

func testClaims() token.Claims {
	return token.Claims{
		UserID:    "user-1",
		Email:     "john.doe@example.com",
		Role:      identity.RoleUser,
		IssuedAt:  codecNow.Unix(),
		ExpiresAt: codecNow.Add(time.Hour).Unix(),
	}
}

func TestEncodeDecodeAccessToken(t *testing.T) {
	codec := newTestCodec()

	raw, err := codec.Encode(testClaims(), token.ClassAccess)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "mock."), "access tokens carry the mock prefix")
	require.Len(t, strings.Split(raw, "."), 3)

	claims, class, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, token.ClassAccess, class)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, identity.RoleUser, claims.Role)
	assert.False(t, claims.IsRefresh())
	assert.False(t, codec.Expired(claims))
}

func TestEncodeDecodeRefreshToken(t *testing.T) {
	codec := newTestCodec()

	raw, err := codec.Encode(testClaims(), token.ClassRefresh)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "refresh."))

	claims, class, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, token.ClassRefresh, class)
	assert.True(t, claims.IsRefresh())
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	codec := newTestCodec()

	_, _, err := codec.Decode("not-a-token")
	require.ErrorIs(t, err, token.ErrMalformed)

	_, _, err = codec.Decode("mock.onlytwo")
	require.ErrorIs(t, err, token.ErrMalformed)

	_, _, err = codec.Decode("jwt.payload.signature")
	require.ErrorIs(t, err, token.ErrUnknownPrefix)
}

func TestDecodeRejectsGarbagePayload(t *testing.T) {
	codec := newTestCodec(token.WithSignatureVerification(false))

	_, _, err := codec.Decode("mock.%%%%.sig")
	require.ErrorIs(t, err, token.ErrBadPayload)

	notJSON := base64.StdEncoding.EncodeToString([]byte("plain text"))
	_, _, err = codec.Decode("mock." + notJSON + ".sig")
	require.ErrorIs(t, err, token.ErrBadPayload)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec()

	raw, err := codec.Encode(testClaims(), token.ClassAccess)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString([]byte("forged"))
	_, _, err = codec.Decode(tampered)
	require.ErrorIs(t, err, token.ErrBadSignature)

	// Payload swapped under the original signature.
	other, err := codec.Encode(token.Claims{UserID: "user-2", ExpiresAt: codecNow.Add(time.Hour).Unix()}, token.ClassAccess)
	require.NoError(t, err)
	otherParts := strings.Split(other, ".")
	spliced := parts[0] + "." + otherParts[1] + "." + parts[2]
	_, _, err = codec.Decode(spliced)
	require.ErrorIs(t, err, token.ErrBadSignature)
}

func TestDecodeWithoutVerificationAcceptsAnySignature(t *testing.T) {
	codec := newTestCodec(token.WithSignatureVerification(false))

	raw, err := codec.Encode(testClaims(), token.ClassAccess)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + ".whatever"
	claims, class, err := codec.Decode(tampered)
	require.NoError(t, err)
	assert.Equal(t, token.ClassAccess, class)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestExpired(t *testing.T) {
	codec := newTestCodec()

	claims := testClaims()
	claims.ExpiresAt = codecNow.Add(-time.Second).Unix()
	require.True(t, codec.Expired(&claims))

	claims.ExpiresAt = codecNow.Unix()
	require.True(t, codec.Expired(&claims), "expiry exactly at now counts as expired")
}
