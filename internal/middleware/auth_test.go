package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
)

func setupAuthRouter(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(validator))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetInt64("userID"),
			"username": c.GetString("username"),
		})
	})
	return r
}

func TestAuthMissingHeader(t *testing.T) {
	validator := new(mocks.TokenValidatorMock)
	router := setupAuthRouter(validator)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	validator.AssertNotCalled(t, "ValidateToken")
}

func TestAuthMalformedHeader(t *testing.T) {
	validator := new(mocks.TokenValidatorMock)
	router := setupAuthRouter(validator)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "token abc extra")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInvalidToken(t *testing.T) {
	validator := new(mocks.TokenValidatorMock)
	router := setupAuthRouter(validator)

	validator.On("ValidateToken", mock.Anything, "bad").
		Return(int64(0), "", assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	validator.AssertExpectations(t)
}

func TestAuthSetsIdentity(t *testing.T) {
	validator := new(mocks.TokenValidatorMock)
	router := setupAuthRouter(validator)

	validator.On("ValidateToken", mock.Anything, "good").
		Return(int64(7), "carol", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":7`)
	require.Contains(t, rec.Body.String(), `"username":"carol"`)
	validator.AssertExpectations(t)
}
