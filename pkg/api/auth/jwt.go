package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidTokenType    = errors.New("invalid token type")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
	ErrMissingSubject      = errors.New("token subject is required")
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 32

// DefaultIssuer is the iss claim of issued tokens.
const DefaultIssuer = "sharescan"

// JWTConfig holds configuration for token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "sharescan"
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 24 hours.
	TokenDuration time.Duration
}

// JWTService issues and validates API tokens.
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token" yaml:"access_token"`
	TokenType   string    `json:"token_type" yaml:"token_type"`
	Subject     string    `json:"subject" yaml:"subject"`
	ExpiresIn   int64     `json:"expires_in" yaml:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
}

// NewJWTService creates a service signing with config.Secret.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}
	return &JWTService{config: config, now: time.Now}, nil
}

// IssueToken signs an access token for subject.
func (s *JWTService) IssueToken(subject string) (*Token, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	now := s.now()
	expiresAt := now.Add(s.config.TokenDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenSigningFailed, err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Subject:     subject,
		ExpiresIn:   int64(s.config.TokenDuration.Seconds()),
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// ValidateToken validates a token and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken validates a token and ensures it's an access token.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsAccessToken() {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

// TokenDuration returns the lifetime of issued tokens.
func (s *JWTService) TokenDuration() time.Duration {
	return s.config.TokenDuration
}
