// Package session supplies bearer tokens for the remote service client:
// either a static pre-issued token, or self-minted HS256 JWTs refreshed
// before expiry (the pattern used by mobile clients talking to a backend
// that shares the signing secret).
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pocketlist/cartsync/remote"
)

// StaticToken returns a TokenFunc that always yields the given token.
func StaticToken(token string) remote.TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// Claims are the JWT claims carried by a cartsync session token. The device
// id identifies this install so the backend can suppress echo events.
type Claims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// Session mints and caches HS256 tokens for one signed-in user.
type Session struct {
	userID   string
	deviceID string
	secret   []byte
	expiry   time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New creates a session for the given user and device.
func New(userID, deviceID, secret string, expiry time.Duration) *Session {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Session{
		userID:   userID,
		deviceID: deviceID,
		secret:   []byte(secret),
		expiry:   expiry,
	}
}

// Token implements remote.TokenFunc, reusing the cached token until it is
// within a minute of expiry.
func (s *Session) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expiresAt) > time.Minute {
		return s.token, nil
	}

	now := time.Now()
	claims := &Claims{
		DeviceID: s.deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "cartsync",
			Subject:   s.userID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.token = token
	s.expiresAt = now.Add(s.expiry)
	return token, nil
}
