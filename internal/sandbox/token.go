package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Admin token errors
var (
	ErrNoToken      = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid admin token")
)

const adminScope = "sandbox:admin"

// IssueAdminToken signs an HS256 token for the sandbox admin API
func IssueAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("admin secret is empty")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"scope": adminScope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminToken checks signature, expiry and scope and returns the subject
func ValidateAdminToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if scope, _ := claims["scope"].(string); scope != adminScope {
		return "", fmt.Errorf("%w: missing scope", ErrInvalidToken)
	}
	subject, _ := claims["sub"].(string)
	return subject, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>" or,
// for websocket clients that cannot set headers, the token query parameter
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
		return "", ErrNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidToken)
	}
	return parts[1], nil
}
