package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rpupo63/portfolio-cms/config"
	"github.com/rpupo63/portfolio-cms/errs"
)

const (
	adminSubject = "admin"
	tokenIssuer  = "portfolio-cms"
)

// Session is an issued admin token and its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService checks the admin password and issues and verifies HS256 session tokens.
type AuthService struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService signs with JWTSecret, or with the password itself when no secret is set.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = cfg.AdminPassword
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &AuthService{
		password: []byte(cfg.AdminPassword),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Enabled reports whether an admin password is configured. Without one nobody can log in.
func (s *AuthService) Enabled() bool {
	return len(s.password) > 0
}

func (s *AuthService) Login(password string) (*Session, error) {
	if !s.Enabled() {
		return nil, errs.NewLoginDisabledError()
	}
	if subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		return nil, errs.NewBadPasswordError()
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errs.NewInternalErrorWithCause("failed to sign session token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Verify parses token and returns its expiry.
func (s *AuthService) Verify(token string) (time.Time, error) {
	if !s.Enabled() {
		return time.Time{}, errs.NewLoginDisabledError()
	}
	if token == "" {
		return time.Time{}, errs.NewMissingTokenError()
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return time.Time{}, errs.NewExpiredTokenError()
		}
		return time.Time{}, errs.NewInvalidTokenError()
	}
	return claims.ExpiresAt.Time, nil
}
