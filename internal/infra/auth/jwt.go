// Package auth выдаёт и проверяет токены операторов, которым разрешено
// менять статусы позиций.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// CtxOperatorKey ключ fiber.Locals с именем оператора.
const CtxOperatorKey = "operator"

type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, operator string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(operator) == "" {
		return "", errors.New("operator is required")
	}
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Operator == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}
		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals(CtxOperatorKey, claims.Operator)
		return c.Next()
	}
}

// Operator имя оператора из контекста запроса; "" если мидлварь не отработала.
func Operator(c *fiber.Ctx) string {
	op, _ := c.Locals(CtxOperatorKey).(string)
	return op
}
