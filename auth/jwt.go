package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator validates RSA-signed (RS256/RS384/RS512) bearer tokens against a
// configured RSA public key, checking audience/issuer when configured.
// It lives beside the Basic/Bearer authenticators in the core package
// since auth is an external collaborator the core doesn't special-case,
// and it produces a Context uniformly through ContextAuthenticator
// instead of stashing jwt.MapClaims under its own private context key.
type JWTAuthenticator struct {
	publicKey *rsa.PublicKey
	audience  string
	issuer    string
}

// NewJWTAuthenticator creates a JWT authenticator from a PEM-encoded RSA
// public key file.
func NewJWTAuthenticator(publicKeyPath, audience, issuer string) (*JWTAuthenticator, error) {
	keyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return NewJWTAuthenticatorFromPEM(keyData, audience, issuer)
}

// NewJWTAuthenticatorFromPEM builds a JWT authenticator from PEM-encoded
// key bytes already in memory, for callers that don't keep the key on
// disk (e.g. a key fetched from a secrets manager).
func NewJWTAuthenticatorFromPEM(keyData []byte, audience, issuer string) (*JWTAuthenticator, error) {
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA public key")
	}

	return &JWTAuthenticator{publicKey: rsaKey, audience: audience, issuer: issuer}, nil
}

// Authenticate implements Authenticator.
func (j *JWTAuthenticator) Authenticate(r *http.Request) error {
	_, err := j.authenticate(r)
	return err
}

// AuthenticateContext implements ContextAuthenticator, surfacing the
// token's "sub" claim as the subject and its full claim set as Claims.
func (j *JWTAuthenticator) AuthenticateContext(r *http.Request) (Context, error) {
	claims, err := j.authenticate(r)
	if err != nil {
		return Context{}, err
	}
	sub, _ := claims["sub"].(string)
	return Context{Subject: sub, Claims: claims}, nil
}

func (j *JWTAuthenticator) authenticate(r *http.Request) (jwt.MapClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, fmt.Errorf("invalid authorization type")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims format")
	}

	if j.audience != "" {
		aud, ok := claims["aud"].(string)
		if !ok || aud != j.audience {
			return nil, fmt.Errorf("invalid audience")
		}
	}
	if j.issuer != "" {
		iss, ok := claims["iss"].(string)
		if !ok || iss != j.issuer {
			return nil, fmt.Errorf("invalid issuer")
		}
	}

	return claims, nil
}
