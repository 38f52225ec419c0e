// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package token issues and verifies the signed session tokens returned by
// login and presented as bearer tokens on every protected request, and the
// email confirmation tokens sent at registration.
package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid signing key")
)

const (
	// DefaultLifetime is how long a session token stays valid when no
	// lifetime is configured.
	DefaultLifetime = 48 * time.Hour
	// DefaultConfirmationLifetime is half a day.
	DefaultConfirmationLifetime = 12 * time.Hour
)

// PurposeConfirmEmail marks email confirmation tokens.
const PurposeConfirmEmail = "confirm_email"

// Claims are the token claims. Subject holds the user id. Session tokens
// carry no purpose.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies RS512 tokens.
type Issuer struct {
	key      *rsa.PrivateKey
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. A zero lifetime uses DefaultLifetime.
func NewIssuer(key *rsa.PrivateKey, issuer string, lifetime time.Duration) (*Issuer, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Issuer{key: key, issuer: issuer, lifetime: lifetime, now: time.Now}, nil
}

// GenerateKey creates an ephemeral 2048-bit key. Tokens signed with it do not
// survive a restart.
func GenerateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

// LoadKey reads a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return ParseKey(data)
}

// ParseKey parses a PEM encoded RSA private key.
func ParseKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidKey
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}
	return key, nil
}

// Issue signs a session token for a user.
func (i *Issuer) Issue(userID, email string) (string, error) {
	return i.issue(userID, email, "", i.lifetime)
}

// IssueConfirmation signs a short-lived token that proves control of email.
// It is rejected by Verify, so it cannot be used as a bearer token.
func (i *Issuer) IssueConfirmation(userID, email string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = DefaultConfirmationLifetime
	}
	return i.issue(userID, email, PurposeConfirmEmail, lifetime)
}

func (i *Issuer) issue(userID, email, purpose string, lifetime time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS512, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer and expiry of a session
// token.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	return i.verify(raw, "")
}

// VerifyConfirmation checks a token issued by IssueConfirmation.
func (i *Issuer) VerifyConfirmation(raw string) (*Claims, error) {
	return i.verify(raw, PurposeConfirmEmail)
}

func (i *Issuer) verify(raw, purpose string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return &i.key.PublicKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: unexpected purpose %q", ErrInvalidToken, claims.Purpose)
	}
	return claims, nil
}
