package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token cannot be parsed or its signature does not verify.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpired is returned when the token's expiry has passed or is missing.
	ErrExpired = errors.New("token has expired")
	// ErrMissingSubject is returned when the token carries no subject.
	ErrMissingSubject = errors.New("token subject missing")
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = 60 * time.Minute

// TokenConfig holds the process-wide signing material.
type TokenConfig struct {
	SecretKey string
	Algorithm string
	TTL       time.Duration
}

// Claims are the validated contents of an access token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenService issues and validates signed access tokens. It keeps no state
// beyond its configuration.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService. An empty algorithm means HS256 and
// only HMAC algorithms are accepted.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("token secret key is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(cfg.SecretKey),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subject that expires after the configured TTL.
func (s *TokenService) Issue(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Validate verifies signature and expiry and returns the token's claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformedToken
	}
	if !token.Valid {
		return nil, ErrMalformedToken
	}

	if claims.ExpiresAt == nil {
		return nil, ErrExpired
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	out := &Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
