// Package auth issues and verifies the bearer tokens guarding the analysis
// endpoint. Credentials are deliberately simple (single configured account);
// production deployments are expected to front this with hospital SSO.
package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "go-ct-staging/internal/errors"
	"go-ct-staging/pkg/models"
)

type Service struct {
	secret   []byte
	username string
	password string
	ttl      time.Duration
}

func NewService(secret, username, password string, ttl time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		username: username,
		password: password,
		ttl:      ttl,
	}
}

// Login checks the credentials and returns a signed token with the user info.
func (s *Service) Login(username, password string) (string, *models.UserInfo, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", nil, apperrors.NewUnauthorizedError("invalid credentials", nil)
	}

	user := &models.UserInfo{ID: s.username, Username: s.username, Role: "radiologist"}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.Username,
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, apperrors.NewInternalError("sign token", err)
	}
	return signed, user, nil
}

// Verify parses and validates a bearer token and returns the user it names.
func (s *Service) Verify(tokenString string) (*models.UserInfo, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid token claims", nil)
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return nil, apperrors.NewUnauthorizedError("token missing subject", nil)
	}
	return &models.UserInfo{ID: sub, Username: sub, Role: role}, nil
}
