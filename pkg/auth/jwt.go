package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a session token. ImpersonatorID is set only on
// tokens minted by the impersonation flow: the token acts as the demo
// target, but the admin who requested it stays identifiable.
type Claims struct {
	UserID         uuid.UUID `json:"uid"`
	Username       string    `json:"username"`
	IsAdmin        bool      `json:"is_admin"`
	IsDemo         bool      `json:"is_demo"`
	ImpersonatorID uuid.UUID `json:"impersonator_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates session tokens.
type TokenService interface {
	Issue(claims Claims) (string, error)
	Validate(token string) (*Claims, error)
}

type tokenService struct {
	secret []byte
	expiry time.Duration
}

func NewTokenService(secret string, expiry time.Duration) TokenService {
	return &tokenService{secret: []byte(secret), expiry: expiry}
}

func (s *tokenService) Issue(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *tokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
