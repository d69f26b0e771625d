// Package auth verifies bearer tokens issued for employees.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/port"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// JWTVerifier checks HS256 tokens whose subject is the employee code
type JWTVerifier struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewJWTVerifier creates a verifier; an empty issuer disables the issuer check
func NewJWTVerifier(secret, issuer string, logger *zap.Logger) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger,
	}
}

// Verify returns the employee code carried in the token subject
func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		v.logger.Debug("Token rejected", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	code := strings.TrimSpace(claims.Subject)
	if code == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return code, nil
}

// Issue signs a token for the employee that expires after ttl
func (v *JWTVerifier) Issue(employeeCode string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   employeeCode,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify interface compliance
var _ port.IdentityProvider = (*JWTVerifier)(nil)
