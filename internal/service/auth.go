package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/hstoff/storefront/internal/auth"
	"github.com/hstoff/storefront/internal/models"
)

// AuthService authenticates the shop admin
type AuthService struct {
	adminUser    string
	passwordHash string
	token        *auth.AuthToken
}

// NewAuthService creates new AuthService instance
func NewAuthService(adminUser, passwordHash string, token *auth.AuthToken) *AuthService {
	return &AuthService{
		adminUser:    adminUser,
		passwordHash: passwordHash,
		token:        token,
	}
}

// Login checks the credentials and mints an admin token
func (as *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username != as.adminUser {
		return "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(as.passwordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}
	return as.token.CreateToken(username)
}
