package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "admin"

// requireAdmin verifies the Bearer token on privileged methods. Tokens are
// HS256 JWTs carrying a "role" claim; anything but "admin" is rejected. With
// no secret configured every privileged method is disabled.
func (s *Server) requireAdmin(r *http.Request) *RPCError {
	if len(s.jwtSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "privileged methods are disabled"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "authorization header required"}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token claims"}
	}
	role, _ := claims["role"].(string)
	if role != adminRole {
		return &RPCError{Code: codeUnauthorized, Message: "admin role required"}
	}
	return nil
}

// NewAdminToken mints an admin JWT with the given lifetime, used by
// operational tooling and tests.
func NewAdminToken(secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": adminRole,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
