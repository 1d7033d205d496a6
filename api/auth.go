// Copyright 2025 Blink Labs Software
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
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/herita/certification"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid bearer token")

type callerKey struct{}

// NewToken signs a bearer token identifying the given caller. A zero ttl
// gives a token that does not expire.
func NewToken(
	secret []byte,
	caller certification.Identity,
	ttl time.Duration,
) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  caller.String(),
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a bearer token and returns the caller it names
func ParseToken(secret []byte, tokenString string) (certification.Identity, error) {
	if len(secret) == 0 {
		return certification.NullIdentity, fmt.Errorf(
			"%w: authentication is not configured",
			ErrInvalidToken,
		)
	}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return certification.NullIdentity, fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		return certification.NullIdentity, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return certification.NullIdentity, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	caller, err := certification.ParseIdentity(subject)
	if err != nil {
		return certification.NullIdentity, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if caller == certification.NullIdentity {
		return certification.NullIdentity, fmt.Errorf("%w: null identity", ErrInvalidToken)
	}
	return caller, nil
}

// requireCaller rejects requests without a valid bearer token and stores the
// caller identity in the request context
func (a *API) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := ParseToken(a.config.JWTSecret, tokenString)
		if err != nil {
			a.logger.Debug(
				"rejected bearer token",
				"error", err,
				"request_id", requestIDFromContext(r.Context()),
			)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) certification.Identity {
	caller, ok := ctx.Value(callerKey{}).(certification.Identity)
	if !ok {
		return certification.NullIdentity
	}
	return caller
}
