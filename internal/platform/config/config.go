// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, then runs the token-engine validation pass: TTLs must be positive,
the refresh-hash key must decode to exactly 32 bytes, and the HS256 key set
must contain the active kid with secrets of usable length.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (stores, token service) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Errors

// ErrorClass categorizes configuration failures for startup diagnostics.
type ErrorClass string

const (
	// ClassMissing: a required variable is absent or empty.
	ClassMissing ErrorClass = "missing"

	// ClassInvalid: a variable is present but semantically unacceptable.
	ClassInvalid ErrorClass = "invalid"

	// ClassDecode: a variable failed base64 or JSON decoding.
	ClassDecode ErrorClass = "decode"

	// ClassWrongLen: decoded key material has the wrong byte length.
	ClassWrongLen ErrorClass = "wrong_length"
)

// ConfigError reports exactly which variable failed and why.
//
// Detail never contains secret material, only lengths and identifiers, so the
// error is safe to log at startup.
type ConfigError struct {
	Class  ErrorClass
	Var    string
	Detail string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s: %s", e.Var, e.Class, e.Detail)
}

// # Configuration Schema

// HS256Key is one decoded entry of the JWT signing key set.
type HS256Key struct {
	KID    string
	Secret []byte
}

// jwtKeyJSON is the wire form of one JWT_HS256_KEYS_JSON entry.
type jwtKeyJSON struct {
	KID       string `json:"kid"`
	SecretB64 string `json:"secret_b64"`
}

// Config holds all runtime configuration for the Sesame token service.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Backing stores. Both are optional: REDIS_URL selects the Redis store,
	// DATABASE_URL the PostgreSQL store, neither the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// JWT claim configuration
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	// Token lifetimes in whole seconds
	AccessTTLSeconds  int64 `env:"ACCESS_TTL_SECONDS"`
	RefreshTTLSeconds int64 `env:"REFRESH_TTL_SECONDS"`

	// Keyed-hash secret for refresh tokens: base64, exactly 32 bytes decoded.
	RefreshHashKeyB64 string `env:"REFRESH_HASH_KEY_B64"`

	// HS256 key set: JSON array of {"kid": ..., "secret_b64": ...} plus the
	// kid that signs new tokens.
	JWTActiveKID     string `env:"JWT_ACTIVE_KID"`
	JWTHS256KeysJSON string `env:"JWT_HS256_KEYS_JSON"`

	// Cookie names for the route layer
	AccessCookieName  string `env:"ACCESS_COOKIE_NAME"  envDefault:"access"`
	RefreshCookieName string `env:"REFRESH_COOKIE_NAME" envDefault:"refresh"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// Optional static account set for the login routes (development and
	// single-tenant deployments). Empty disables the login flow.
	SeedUsersJSON string `env:"SEED_USERS_JSON"`

	// Decoded key material, populated by Load after validation.
	RefreshHashKey [32]byte   `env:"-"`
	JWTKeys        []HS256Key `env:"-"`
}

// # Configuration Loading

/*
Load parses environment variables into a [Config] struct and validates the
token-engine invariants.

Returns:
  - *Config: Fully decoded, validated configuration
  - error: *ConfigError naming the first offending variable
*/
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// Required-ness is checked below so every failure carries a ConfigError.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate runs the invariant checks and decodes key material in place.
func (c *Config) validate() error {
	if c.JWTIssuer == "" {
		return &ConfigError{Class: ClassMissing, Var: "JWT_ISSUER", Detail: "issuer claim value is required"}
	}
	if c.JWTAudience == "" {
		return &ConfigError{Class: ClassMissing, Var: "JWT_AUDIENCE", Detail: "audience claim value is required"}
	}

	if c.AccessTTLSeconds <= 0 {
		return &ConfigError{Class: ClassInvalid, Var: "ACCESS_TTL_SECONDS", Detail: "must be a positive number of seconds"}
	}
	if c.RefreshTTLSeconds <= 0 {
		return &ConfigError{Class: ClassInvalid, Var: "REFRESH_TTL_SECONDS", Detail: "must be a positive number of seconds"}
	}

	if err := c.decodeRefreshHashKey(); err != nil {
		return err
	}
	return c.decodeJWTKeys()
}

// decodeRefreshHashKey decodes REFRESH_HASH_KEY_B64 into the fixed-size key.
func (c *Config) decodeRefreshHashKey() error {
	if c.RefreshHashKeyB64 == "" {
		return &ConfigError{Class: ClassMissing, Var: "REFRESH_HASH_KEY_B64", Detail: "refresh-token hash key is required"}
	}

	raw, err := base64.StdEncoding.DecodeString(c.RefreshHashKeyB64)
	if err != nil {
		return &ConfigError{Class: ClassDecode, Var: "REFRESH_HASH_KEY_B64", Detail: "not valid standard base64"}
	}
	if len(raw) != len(c.RefreshHashKey) {
		return &ConfigError{
			Class:  ClassWrongLen,
			Var:    "REFRESH_HASH_KEY_B64",
			Detail: fmt.Sprintf("decoded to %d bytes, need exactly %d", len(raw), len(c.RefreshHashKey)),
		}
	}

	copy(c.RefreshHashKey[:], raw)
	return nil
}

// decodeJWTKeys parses JWT_HS256_KEYS_JSON and checks the set against the
// active kid.
func (c *Config) decodeJWTKeys() error {
	if c.JWTActiveKID == "" {
		return &ConfigError{Class: ClassMissing, Var: "JWT_ACTIVE_KID", Detail: "active signing kid is required"}
	}
	if c.JWTHS256KeysJSON == "" {
		return &ConfigError{Class: ClassMissing, Var: "JWT_HS256_KEYS_JSON", Detail: "signing key set is required"}
	}

	var entries []jwtKeyJSON
	if err := json.Unmarshal([]byte(c.JWTHS256KeysJSON), &entries); err != nil {
		return &ConfigError{Class: ClassDecode, Var: "JWT_HS256_KEYS_JSON", Detail: "not a valid JSON key array"}
	}
	if len(entries) == 0 {
		return &ConfigError{Class: ClassInvalid, Var: "JWT_HS256_KEYS_JSON", Detail: "key set is empty"}
	}

	seen := make(map[string]struct{}, len(entries))
	keys := make([]HS256Key, 0, len(entries))
	activeFound := false

	for _, entry := range entries {
		if entry.KID == "" {
			return &ConfigError{Class: ClassInvalid, Var: "JWT_HS256_KEYS_JSON", Detail: "entry with empty kid"}
		}
		if _, dup := seen[entry.KID]; dup {
			return &ConfigError{Class: ClassInvalid, Var: "JWT_HS256_KEYS_JSON", Detail: fmt.Sprintf("duplicate kid %q", entry.KID)}
		}
		seen[entry.KID] = struct{}{}

		secret, err := base64.StdEncoding.DecodeString(entry.SecretB64)
		if err != nil {
			return &ConfigError{Class: ClassDecode, Var: "JWT_HS256_KEYS_JSON", Detail: fmt.Sprintf("secret for kid %q is not valid base64", entry.KID)}
		}
		if len(secret) < 32 {
			return &ConfigError{
				Class:  ClassWrongLen,
				Var:    "JWT_HS256_KEYS_JSON",
				Detail: fmt.Sprintf("secret for kid %q decoded to %d bytes, need at least 32", entry.KID, len(secret)),
			}
		}

		if entry.KID == c.JWTActiveKID {
			activeFound = true
		}
		keys = append(keys, HS256Key{KID: entry.KID, Secret: secret})
	}

	if !activeFound {
		return &ConfigError{Class: ClassInvalid, Var: "JWT_ACTIVE_KID", Detail: fmt.Sprintf("kid %q not present in key set", c.JWTActiveKID)}
	}

	c.JWTKeys = keys
	return nil
}

// # Derived Values

// AccessTTL returns the access-token lifetime as a duration.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLSeconds) * time.Second
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
