// Package auth issues and validates operator tokens for the control
// plane.
//
// The platform has no end users: mutating endpoints (area creation,
// training control) are driven by operators and automation, so the only
// credential is a short-lived HS256 JWT minted out of band (trafficctl
// token) and presented as a Bearer token. Read endpoints stay open.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OperatorTokenExpiry is how long operator tokens are valid. Twelve
// hours covers a working day; automation re-mints on schedule.
const OperatorTokenExpiry = 12 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid operator token")
	ErrTokenExpired = errors.New("operator token has expired")
)

// OperatorClaims are the claims carried by operator tokens.
type OperatorClaims struct {
	jwt.RegisteredClaims

	// Operator identifies who or what the token was minted for.
	Operator string `json:"op"`
}

// JWTConfig configures token issuance and validation.
type JWTConfig struct {
	// SigningKey is the HS256 secret.
	SigningKey string

	// Issuer is the iss claim, e.g. "https://api.trafficlens.io".
	Issuer string

	// Audience is the aud claim, e.g. "trafficlens-api".
	Audience string
}

// JWTService mints and validates operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(cfg JWTConfig) *JWTService {
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// GenerateOperatorToken mints a token for the named operator, returning
// the signed token and its expiry.
func (s *JWTService) GenerateOperatorToken(operator string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(OperatorTokenExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   operator,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Operator: operator,
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks the signature and registered claims, returning the
// operator claims on success. Expired tokens map to ErrTokenExpired, all
// other failures to ErrInvalidToken.
func (s *JWTService) ValidateToken(tokenString string) (*OperatorClaims, error) {
	keyFn := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, keyFn,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
