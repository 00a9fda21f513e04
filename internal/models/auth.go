package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload.
type JWTClaims struct {
	AccountID string      `json:"account_id"`
	Email     string      `json:"email"`
	Role      AccountRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginResponse carries the issued token and account identity.
type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   int64   `json:"expires_in"`
	Account     Account `json:"account"`
}
