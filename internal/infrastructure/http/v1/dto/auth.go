package dto

import (
	"time"

	"backoffice/internal/domain/auth"
)

// LoginRequest for user login.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Login       string    `json:"login"`
}

// FromLoginResult creates response from domain login result.
func FromLoginResult(r *auth.LoginResult) *LoginResponse {
	return &LoginResponse{
		AccessToken: r.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   r.ExpiresAt,
		Login:       r.Login,
	}
}
