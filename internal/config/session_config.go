package config

import (
	"path/filepath"
	"time"
)

type SessionConfig interface {
	GetTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshLeadTime() time.Duration
	GetCredentialFile() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-only-token-secret")
}

func (Session) GetAccessTokenExpiry() time.Duration {
	return getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

func (Session) GetRefreshTokenExpiry() time.Duration {
	return getDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

// GetRefreshLeadTime is how long before access token expiry the
// background refresh fires.
func (Session) GetRefreshLeadTime() time.Duration {
	return getDuration("REFRESH_LEAD_TIME", 5*time.Minute)
}

func (Session) GetCredentialFile() string {
	file := GetEnv("CREDENTIAL_FILE", "")
	if file != "" {
		return file
	}
	return filepath.Join(EnvVars{}.GetDataFolder(), "credentials.json")
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
