package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"yard-service/internal/auth"
	"yard-service/internal/model"
)

const (
	principalContextKey = "principal"
	authorizationHeader = "Authorization"
	bearerScheme        = "Bearer"
)

var (
	errHeaderMissing = errors.New("authorization header missing")
	errHeaderInvalid = errors.New("invalid authorization header")
)

// TokenParser проверяет bearer-токен и возвращает его claims
type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// Auth пропускает запрос дальше только с валидным bearer-токеном оператора
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader(authorizationHeader))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := parser.Parse(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(principalContextKey, claims.Principal())
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errHeaderMissing
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) || strings.TrimSpace(token) == "" {
		return "", errHeaderInvalid
	}
	return strings.TrimSpace(token), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	principal, ok := c.Value(principalContextKey).(model.Principal)
	return principal, ok
}
