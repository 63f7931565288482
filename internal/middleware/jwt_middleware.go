// internal/middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKeyClaims menyimpan claims token yang valid di echo.Context.
const ContextKeyClaims = "api_claims"

func unauthorized(c echo.Context, message, code string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"message": message,
		"error": map[string]string{
			"code": code,
		},
	})
}

// ParseToken memvalidasi bearer token HS256 dengan secret yang diberikan.
func ParseToken(tokenString string, secret []byte) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTAuthMiddleware mewajibkan header "Authorization: Bearer <token>".
// Secret kosong berarti auth dimatikan.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		key := []byte(secret)

		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorized(c, "Unauthorized", "UNAUTHORIZED")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return unauthorized(c, "Invalid authorization header format", "INVALID_AUTH_HEADER")
			}

			claims, err := ParseToken(parts[1], key)
			if err != nil {
				return unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			}

			c.Set(ContextKeyClaims, claims)
			return next(c)
		}
	}
}
