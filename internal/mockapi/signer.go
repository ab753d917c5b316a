package mockapi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("token invalid")
)

// Claims are the access token claims.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// signer issues and checks HS256 tokens. Rotate invalidates every token
// issued so far.
type signer struct {
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time

	mu  sync.RWMutex
	key []byte
}

func newSigner(key []byte, issuer string, ttl time.Duration, now func() time.Time) (*signer, error) {
	if len(key) < 32 {
		return nil, errors.New("hs256 key must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &signer{issuer: issuer, ttl: ttl, leeway: 5 * time.Second, now: now, key: key}, nil
}

func (s *signer) issue(userID, role string) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func (s *signer) parse(raw string) (*Claims, error) {
	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired
	case err != nil || !token.Valid:
		return nil, errTokenInvalid
	}
	return claims, nil
}

func (s *signer) rotate(key []byte) {
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
}
