package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"yard-service/internal/auth"
	"yard-service/internal/model"
)

type parserFunc func(raw string) (*auth.Claims, error)

func (f parserFunc) Parse(raw string) (*auth.Claims, error) {
	return f(raw)
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	parser := parserFunc(func(raw string) (*auth.Claims, error) {
		if raw != "good" {
			return nil, errors.New("bad token")
		}
		return &auth.Claims{UserID: userID, Role: model.UserRoleAdmin}, nil
	})

	router := gin.New()
	router.GET("/protected", Auth(parser), func(c *gin.Context) {
		principal, ok := MustPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": principal.UserID.String(), "role": principal.Role})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusOK},
		{name: "scheme is case insensitive", header: "bearer good", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, rec.Body.String(), userID.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{header: "", err: errHeaderMissing},
		{header: "Bearer", err: errHeaderInvalid},
		{header: "Bearer   ", err: errHeaderInvalid},
		{header: "Token abc", err: errHeaderInvalid},
		{header: "Bearer abc", token: "abc"},
		{header: "BEARER  abc ", token: "abc"},
	}

	for _, tt := range tests {
		token, err := bearerToken(tt.header)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.header)
			continue
		}
		assert.NoError(t, err, tt.header)
		assert.Equal(t, tt.token, token)
	}
}
