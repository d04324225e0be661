package handler

import (
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// issueToken signs a bearer token the way the upstream identity service does.
func issueToken(a *Authenticator, userID string, role model.Role, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
