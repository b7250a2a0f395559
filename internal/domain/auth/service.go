package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"backoffice/internal/core/apperror"
	"backoffice/pkg/logger"
)

// Account is one configured API account.
type Account struct {
	ID           string `mapstructure:"id"`
	Login        string `mapstructure:"login"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

// LoginResult carries the issued token.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      string    `json:"userId"`
	Login       string    `json:"login"`
}

// Service authenticates configured accounts and issues tokens.
type Service struct {
	accounts map[string]Account
	jwt      *JWTService
}

// NewService creates an auth service over the configured accounts.
func NewService(accounts []Account, jwtService *JWTService) *Service {
	byLogin := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byLogin[a.Login] = a
	}
	return &Service{accounts: byLogin, jwt: jwtService}
}

// Login verifies credentials and returns an access token.
// Failures never say which part was wrong.
func (s *Service) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	account, ok := s.accounts[login]
	if !ok {
		// Burn a comparison anyway so missing and wrong-password logins
		// take the same time.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0T1Ptz8ZAI6FQe5JYyVtRkYyvSa"),
			[]byte(password))
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		logger.Warn(ctx, "failed login attempt", "login", login)
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(account.ID, account.Login)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	logger.Info(ctx, "user logged in", "login", login)
	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		UserID:      account.ID,
		Login:       account.Login,
	}, nil
}

// HashPassword produces a bcrypt hash for provisioning accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
