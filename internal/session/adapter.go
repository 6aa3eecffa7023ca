package session

import (
	"hushmcp/internal/platform/middleware"
)

// ValidatorAdapter bridges JWTService to the middleware's SessionValidator
// interface. The middleware owns its claims type so it never imports this
// package; the adapter converts at the boundary.
type ValidatorAdapter struct {
	jwt *JWTService
}

func NewValidatorAdapter(jwt *JWTService) *ValidatorAdapter {
	return &ValidatorAdapter{jwt: jwt}
}

func (a *ValidatorAdapter) ValidateSession(tokenString string) (*middleware.SessionClaims, error) {
	claims, err := a.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.SessionClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		JTI:    claims.ID,
	}, nil
}
