package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrWrongTokenUse = errors.New("token used for wrong purpose")
)

// AuthService issues and validates the JWT access and refresh tokens.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

type tokenClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) generateToken(userID string, tokenType string, expiry time.Duration) (string, error) {
	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// GenerateAccessToken creates a short-lived access token for a user.
func (s *AuthService) GenerateAccessToken(userID string, expiry time.Duration) (string, error) {
	return s.generateToken(userID, "access", expiry)
}

// GenerateRefreshToken creates a longer-lived refresh token for a user.
func (s *AuthService) GenerateRefreshToken(userID string, expiry time.Duration) (string, error) {
	return s.generateToken(userID, "refresh", expiry)
}

func (s *AuthService) parseToken(tokenString string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken verifies an access token and returns the user ID it carries.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "access" {
		return "", ErrWrongTokenUse
	}
	return claims.Subject, nil
}

// ValidateRefreshToken verifies a refresh token and returns the user ID.
func (s *AuthService) ValidateRefreshToken(tokenString string) (string, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "refresh" {
		return "", ErrWrongTokenUse
	}
	return claims.Subject, nil
}
