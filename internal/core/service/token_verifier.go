package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/user-management/internal/core/domain"
)

// DefaultAlgorithm is used when TokenConfig.Algorithm is empty.
const DefaultAlgorithm = "HS256"

var hmacMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenConfig holds the shared secret and the single accepted algorithm.
type TokenConfig struct {
	Secret    string
	Algorithm string
}

// TokenVerifier validates HMAC-signed JWTs. It keeps no mutable state and is
// safe for concurrent use.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenVerifier builds a verifier for cfg. now is the clock used for the
// expiry check; nil means time.Now.
func NewTokenVerifier(cfg TokenConfig, now func() time.Time) (*TokenVerifier, error) {
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if _, ok := hmacMethods[alg]; !ok {
		return nil, fmt.Errorf("token verifier: unsupported algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("token verifier: empty secret")
	}
	if now == nil {
		now = time.Now
	}

	return &TokenVerifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{alg}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Verify checks signature, algorithm and expiry, and extracts the subject.
// Every failure is reported as domain.ErrInvalidToken.
func (v *TokenVerifier) Verify(token string) (domain.TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.TokenClaims{}, fmt.Errorf("%w: subject %q is not a user id", domain.ErrInvalidToken, claims.Subject)
	}

	return domain.TokenClaims{
		UserID:    id,
		ExpiresAt: claims.ExpiresAt.Time,
		Audience:  []string(claims.Audience),
	}, nil
}
