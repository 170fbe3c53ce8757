package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose keeps tokens issued for one flow from being accepted by another.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "reset_password"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Mail    time.Duration
}

// Issuer signs and checks HS256 tokens whose subject is the user's email.
type Issuer struct {
	secret []byte
	ttls   TTLs
	now    func() time.Time
}

func NewIssuer(secret string, ttls TTLs) *Issuer {
	return &Issuer{secret: []byte(secret), ttls: ttls, now: time.Now}
}

// WithClock returns a copy of the issuer that reads the time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) ttl(purpose Purpose) time.Duration {
	switch purpose {
	case PurposeAccess:
		return i.ttls.Access
	case PurposeRefresh:
		return i.ttls.Refresh
	default:
		return i.ttls.Mail
	}
}

func (i *Issuer) Issue(email string, purpose Purpose) (string, error) {
	now := i.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl(purpose))),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return token, nil
}

// Parse checks the signature, expiry and purpose of raw and returns the email
// it was issued for. Every failure wraps ErrInvalidToken.
func (i *Issuer) Parse(raw string, purpose Purpose) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return "", fmt.Errorf("%w: %s token used as %s token", ErrInvalidToken, claims.Purpose, purpose)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
