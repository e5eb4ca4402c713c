// Package auth validates bearer tokens and enforces the authorization
// policies of the REST API.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity claims issued by the directory.
type Claims struct {
	ObjectID          string `json:"oid"`
	Name              string `json:"name"`
	UPN               string `json:"upn"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	ID   uuid.UUID
	Name string
	UPN  string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Validator checks signature, issuer, audience and expiry of tokens. Tokens
// are signed either with a shared HS256 secret or with one of the RSA keys.
type Validator struct {
	issuer   string
	audience string
	secret   []byte
	keys     []*rsa.PublicKey
}

func NewValidator(issuer, audience, secret string, publicKeysPEM []string) (*Validator, error) {
	v := &Validator{issuer: issuer, audience: audience, secret: []byte(secret)}
	for i, pem := range publicKeysPEM {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("error parsing public key %d: %w", i, err)
		}
		v.keys = append(v.keys, key)
	}
	if len(v.secret) == 0 && len(v.keys) == 0 {
		return nil, errors.New("either a signing secret or public keys are required")
	}
	return v, nil
}

func (v *Validator) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, errors.New("hmac tokens are not accepted")
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if len(v.keys) == 0 {
			return nil, errors.New("rsa tokens are not accepted")
		}
		set := jwt.VerificationKeySet{}
		for _, k := range v.keys {
			set.Keys = append(set.Keys, k)
		}
		return set, nil
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// Validate parses the raw token and returns its claims.
func (v *Validator) Validate(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Principal validates the token and extracts the caller identity.
func (v *Validator) Principal(raw string) (Principal, error) {
	claims, err := v.Validate(raw)
	if err != nil {
		return Principal{}, err
	}
	id, err := uuid.Parse(claims.ObjectID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: oid claim is not a uuid", ErrInvalidToken)
	}
	upn := claims.UPN
	if upn == "" {
		upn = claims.PreferredUsername
	}
	return Principal{ID: id, Name: claims.Name, UPN: upn}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
