package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		expiration string
		issuer     string
		wantHours  int
		wantIssuer string
		wantErr    string
	}{
		{name: "defaults", secret: "s3cret", wantHours: 24, wantIssuer: DefaultJWTIssuer},
		{name: "custom expiration", secret: "s3cret", expiration: "12", wantHours: 12, wantIssuer: DefaultJWTIssuer},
		{name: "custom issuer", secret: "s3cret", issuer: "applyai-staging", wantHours: 24, wantIssuer: "applyai-staging"},
		{name: "minimum expiration", secret: "s3cret", expiration: "1", wantHours: 1, wantIssuer: DefaultJWTIssuer},
		{name: "missing secret", wantErr: "JWT_SECRET is required"},
		{name: "zero expiration", secret: "s3cret", expiration: "0", wantErr: "at least 1 hour"},
		{name: "negative expiration", secret: "s3cret", expiration: "-5", wantErr: "at least 1 hour"},
		{name: "non-numeric expiration", secret: "s3cret", expiration: "a day", wantErr: "invalid JWT_EXPIRATION_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)
			t.Setenv("JWT_ISSUER", tt.issuer)

			cfg, err := NewJWTConfig()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.secret, cfg.Secret)
			assert.Equal(t, tt.wantHours, cfg.ExpirationHours)
			assert.Equal(t, tt.wantIssuer, cfg.Issuer)
		})
	}
}

func TestJWTConfig_TTL(t *testing.T) {
	cfg := &JWTConfig{Secret: "x", ExpirationHours: 48}
	assert.Equal(t, 48*time.Hour, cfg.TTL())
}
