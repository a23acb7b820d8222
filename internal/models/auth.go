package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types. A pending token is minted after the password check for a
// 2FA-enabled account and is only good for the verify-2fa step; it must
// never be accepted where an access token is required.
const (
	TokenTypeAccess  = "access"
	TokenTypePending = "2fa_pending"
)

type TokenClaims struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
