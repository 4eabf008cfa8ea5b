// Package jwt emite y valida los tokens de la superficie admin (HS256).
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret     = errors.New("jwt: admin secret not configured")
	ErrInvalidToken = errors.New("jwt: invalid token")
)

// AdminClaims claims del token admin.
type AdminClaims struct {
	Scope string `json:"scope,omitempty"`
	jwtv5.RegisteredClaims
}

// Issuer firma y valida tokens admin con un secreto compartido.
type Issuer struct {
	iss    string
	secret []byte
	now    func() time.Time
}

// NewIssuer crea un issuer. Un secreto vacío deja el issuer inutilizable
// (Sign/Parse devuelven ErrNoSecret).
func NewIssuer(iss, secret string) *Issuer {
	return &Issuer{iss: iss, secret: []byte(secret), now: time.Now}
}

// Enabled indica si hay secreto configurado.
func (i *Issuer) Enabled() bool { return len(i.secret) > 0 }

// Sign emite un token para sub con la duración indicada.
func (i *Issuer) Sign(sub string, ttl time.Duration) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, ErrNoSecret
	}
	now := i.now()
	exp := now.Add(ttl)
	claims := AdminClaims{
		Scope: "admin",
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.iss,
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	s, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return s, exp, nil
}

// Parse valida firma, algoritmo, issuer, expiración y scope.
func (i *Issuer) Parse(raw string) (*AdminClaims, error) {
	if !i.Enabled() {
		return nil, ErrNoSecret
	}
	var claims AdminClaims
	_, err := jwtv5.ParseWithClaims(raw, &claims,
		func(t *jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(i.iss),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Scope != "admin" {
		return nil, fmt.Errorf("%w: scope %q", ErrInvalidToken, claims.Scope)
	}
	return &claims, nil
}
