// Package token validates the HMAC access tokens minted by the surrounding
// login service. Issuance is out of scope here; the core only needs to turn a
// bearer token into an identity id and role.
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	authmw "shiftgate/pkg/platform/middleware/auth"
)

// claims is the wire shape of our access tokens.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator parses and verifies HS256 access tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken verifies the signature and expiry and extracts identity claims.
func (v *Validator) ValidateToken(tokenString string) (*authmw.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	identityID, err := id.ParseIdentityID(c.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}

	return &authmw.Claims{
		IdentityID: identityID,
		Role:       c.Role,
		JTI:        c.ID,
	}, nil
}
