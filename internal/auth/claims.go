package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim value granting admin views
const RoleAdmin = "admin"

// UserInfo is the identity carried in a token or returned at login
type UserInfo struct {
	ID   string
	Role string
}

// DecodeUserInfo reads the subject and role claims from a JWT without
// verifying its signature. The result is for display only; the backend makes
// every authorization decision.
func DecodeUserInfo(token string) (*UserInfo, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	info := &UserInfo{
		ID:   claimString(claims, "sub"),
		Role: claimString(claims, "role"),
	}
	if info.ID == "" {
		info.ID = claimString(claims, "user_id")
	}
	return info, true
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
