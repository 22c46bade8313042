package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mycoding/go-session/identity"
	"github.com/pkg/errors"
)

// Class distinguishes access tokens from refresh tokens. The class is
// carried on the wire as the token's first segment, and the refresh
// flow depends on it to reject access tokens presented for refresh.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

// Wire prefixes. These are part of the persisted token contract.
const (
	accessPrefix  = "mock"
	refreshPrefix = "refresh"
	refreshType   = "refresh"
)

// Decode failure modes. The session service maps these onto its
// INVALID_TOKEN / INVALID_REFRESH_TOKEN errors.
var (
	ErrMalformed     = errors.New("token does not have three segments")
	ErrUnknownPrefix = errors.New("unknown token prefix")
	ErrBadPayload    = errors.New("token payload is not decodable")
	ErrBadSignature  = errors.New("token signature verification failed")
)

// Claims is the token payload. Field names are part of the wire format.
type Claims struct {
	UserID    string        `json:"userId"`
	Email     string        `json:"email"`
	Role      identity.Role `json:"role"`
	IssuedAt  int64         `json:"iat"` // unix seconds
	ExpiresAt int64         `json:"exp"` // unix seconds
	Type      string        `json:"type,omitempty"` // "refresh" on refresh tokens only
}

// Codec encodes and decodes the three-segment token format
// <prefix>.<base64 JSON payload>.<signature>. The signature segment is
// an HMAC-SHA256 over the first two segments; verification can be
// switched off for callers that only need classification.
type Codec struct {
	secret  []byte
	method  *jwtlib.SigningMethodHMAC
	verify  bool
	nowTime func() time.Time
}

// CodecOption defines a function type to modify the Codec instance.
type CodecOption func(*Codec)

// WithSignatureVerification controls whether Decode checks the
// signature segment. Enabled by default.
func WithSignatureVerification(verify bool) CodecOption {
	return func(c *Codec) {
		c.verify = verify
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowTime = nowFunc
	}
}

func NewCodec(secret string, options ...CodecOption) *Codec {
	c := &Codec{
		secret:  []byte(secret),
		method:  jwtlib.SigningMethodHS256,
		verify:  true,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Encode serializes the claims under the given class. Refresh tokens
// are tagged with type "refresh" in the payload in addition to their
// prefix.
func (c *Codec) Encode(claims Claims, class Class) (string, error) {
	prefix, err := prefixForClass(class)
	if err != nil {
		return "", err
	}

	if class == ClassRefresh {
		claims.Type = refreshType
	} else {
		claims.Type = ""
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encode] Marshal")
	}

	signingString := prefix + "." + base64.StdEncoding.EncodeToString(payload)
	sig, err := c.method.Sign(signingString, c.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encode] Sign")
	}

	return signingString + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode parses a raw token and returns its claims and class. It does
// not check expiry; callers decide how staleness maps to their own
// error taxonomy.
func (c *Codec) Decode(raw string) (*Claims, Class, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, "", ErrMalformed
	}

	class, err := classForPrefix(parts[0])
	if err != nil {
		return nil, "", err
	}

	if c.verify {
		sig, err := base64.RawURLEncoding.DecodeString(parts[2])
		if err != nil {
			return nil, "", ErrBadSignature
		}
		if err := c.method.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
			return nil, "", ErrBadSignature
		}
	}

	payload, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, "", ErrBadPayload
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, "", ErrBadPayload
	}
	return claims, class, nil
}

// Expired reports whether the claims' expiry has passed.
func (c *Codec) Expired(claims *Claims) bool {
	return claims.ExpiresAt <= c.nowTime().Unix()
}

// IsRefresh reports whether the claims carry the refresh tag.
func (claims *Claims) IsRefresh() bool {
	return claims.Type == refreshType
}

func prefixForClass(class Class) (string, error) {
	switch class {
	case ClassAccess:
		return accessPrefix, nil
	case ClassRefresh:
		return refreshPrefix, nil
	}
	return "", errors.Errorf("[prefixForClass] unknown token class %q", class)
}

func classForPrefix(prefix string) (Class, error) {
	switch prefix {
	case accessPrefix:
		return ClassAccess, nil
	case refreshPrefix:
		return ClassRefresh, nil
	}
	return "", ErrUnknownPrefix
}
