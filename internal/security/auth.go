package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret     = errors.New("job signing secret is not configured")
	ErrInvalidToken = errors.New("invalid job token")
	ErrTokenExpired = errors.New("job token expired")
)

// clockSkew tolerated between the issuer and the agent.
const clockSkew = 5 * time.Minute

// JobClaims is a signed instruction to run one query file.
type JobClaims struct {
	QueryPath string `json:"query_path"`
	Query     string `json:"query"`
	BatchSize int    `json:"batch_size,omitempty"`
	jwt.RegisteredClaims
}

// SignJob issues an HS256 token for claims that expires after ttl.
func SignJob(secret string, claims JobClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign job: %w", err)
	}
	return signed, nil
}

// VerifyJob checks the signature and expiry of a job token and returns its
// claims. Only HS256 is accepted.
func VerifyJob(secret, token string) (*JobClaims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	claims := &JobClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.QueryPath == "" && claims.Query == "" {
		return nil, fmt.Errorf("%w: no query", ErrInvalidToken)
	}
	return claims, nil
}
