// Package auth verifies and mints the bearer tokens that gate chat sessions.
//
// Verification is a single atomic parse-and-verify: claims are never exposed
// before the signature and expiry have been checked.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors returned by Verify. All of them are non-fatal to the
// caller: the gatekeeper downgrades the connection to anonymous instead of
// rejecting it.
var (
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrBadSignature   = errors.New("auth: invalid token signature")
	ErrMissingClaim   = errors.New("auth: token missing user_id claim")
)

// Claims is the verified payload of a chat bearer token.
type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier validates HS256-signed bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier using the given HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string in one operation and returns its
// claims. Signature, expiry, and structural checks all happen before any
// claim is visible to the caller.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrBadSignature
	}
	if claims.UserID == 0 {
		return nil, ErrMissingClaim
	}
	return claims, nil
}

// classify maps jwt/v5 errors onto the package's sentinel taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}

// Mint issues a signed token for userID with the given lifetime. The login
// service uses the same claim shape, so tokens minted here are accepted by
// Verify.
func Mint(secret string, userID uint64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "friendchat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
