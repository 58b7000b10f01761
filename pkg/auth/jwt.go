package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/praxisdev/identity-api/internal/model"
)

const (
	accessTokenExpiry  = 24 * time.Hour
	refreshTokenExpiry = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	GenerateRefreshToken(user *model.User) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
}

type jwtService struct {
	secret []byte
	issuer string
}

func NewJWTService(secret, issuer string) JWTService {
	return &jwtService{secret: []byte(secret), issuer: issuer}
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	return s.generate(user, model.TokenTypeAccess, accessTokenExpiry)
}

func (s *jwtService) GenerateRefreshToken(user *model.User) (string, error) {
	return s.generate(user, model.TokenTypeRefresh, refreshTokenExpiry)
}

func (s *jwtService) generate(user *model.User, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeAccess)
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeRefresh)
}

func (s *jwtService) parse(token, wantType string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	// A refresh token must never pass as an access token.
	if !parsed.Valid || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
