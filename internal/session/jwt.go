// Package session implements the management-API session layer: dashboard
// users exchange credentials for a short-lived HS256 JWT, present it as a
// bearer token on management endpoints, and revoke it on logout through the
// shared revocation registry. Agent-facing endpoints never see these tokens;
// consent tokens are their only credential.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
)

// Claims are the session JWT claims. The jti carries the sid_ prefix so the
// shared revocation registry can hold sessions alongside consent tokens and
// trust links without key collisions.
type Claims struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	DeviceFingerprint string `json:"device_fp,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates session tokens.
type JWTService struct {
	secret []byte
	issuer string
}

func NewJWTService(secret []byte, issuer string) *JWTService {
	return &JWTService{
		secret: secret,
		issuer: issuer,
	}
}

// GenerateSessionToken signs a session token for userID. The returned claims
// echo what was signed, including the freshly minted sid_ jti, so callers can
// audit and later revoke the session without re-parsing the token.
func (s *JWTService) GenerateSessionToken(
	userID id.UserID,
	email string,
	deviceFingerprint string,
	now time.Time,
	ttl time.Duration,
) (string, *Claims, error) {
	claims := &Claims{
		UserID:            userID.String(),
		Email:             email,
		DeviceFingerprint: deviceFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        id.SessionIDPrefix + uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, claims, nil
}

// ValidateToken checks the signature, expiry, and issuer of a session token.
// Revocation is not checked here; the middleware consults the registry with
// the returned jti.
//
// Errors: CodeUnauthorized for every rejected token. Expired tokens get a
// distinct message; everything else collapses to "invalid session token" so
// responses do not reveal why verification failed.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims, nil
}
