package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/domain"
	"social-service/internal/mocks"
)

func setupKeyRouter(handler *KeyHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Set("username", "alice")
		c.Next()
	})
	r.POST("/keys/temp", handler.GenerateTemp)
	r.POST("/keys/temp/use", handler.UseTemp)
	r.POST("/conversations/:conversation_id/ws-key", handler.WsKey)
	return r
}

func TestGenerateTempKey(t *testing.T) {
	keySvc := new(mocks.SecretKeyServiceMock)
	router := setupKeyRouter(NewKeyHandler(keySvc, nil))

	keySvc.On("GenerateTempKey", mock.Anything, int64(1), "alice", "agent/1.0", "file_download", "").
		Return("abc123", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/keys/temp",
		bytes.NewBufferString(`{"key_type":"file_download"}`))
	req.Header.Set("User-Agent", "agent/1.0")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "abc123", resp["key"])
	require.NotEmpty(t, resp["display"])
	keySvc.AssertExpectations(t)
}

func TestGenerateTempKeyActiveExists(t *testing.T) {
	keySvc := new(mocks.SecretKeyServiceMock)
	router := setupKeyRouter(NewKeyHandler(keySvc, nil))

	keySvc.On("GenerateTempKey", mock.Anything, int64(1), "alice", "", "api_access", "").
		Return("", domain.Validation("an active key already exists for this user")).Once()

	req := httptest.NewRequest(http.MethodPost, "/keys/temp",
		bytes.NewBufferString(`{"key_type":"api_access"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	keySvc.AssertExpectations(t)
}

func TestUseTempKeyStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown", domain.ErrNotFound, http.StatusNotFound},
		{"expired", domain.ErrGone, http.StatusGone},
		{"already used", domain.Validation("key has already been used"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keySvc := new(mocks.SecretKeyServiceMock)
			router := setupKeyRouter(NewKeyHandler(keySvc, nil))

			keySvc.On("ValidateAndUseTempKey", mock.Anything, "k", int64(1)).
				Return(int64(0), "", tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/keys/temp/use",
				bytes.NewBufferString(`{"key":"k"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			keySvc.AssertExpectations(t)
		})
	}
}

func TestUseTempKeySuccess(t *testing.T) {
	keySvc := new(mocks.SecretKeyServiceMock)
	router := setupKeyRouter(NewKeyHandler(keySvc, nil))

	keySvc.On("ValidateAndUseTempKey", mock.Anything, "k", int64(1)).
		Return(int64(1), `{"file":"a.txt"}`, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/keys/temp/use",
		bytes.NewBufferString(`{"key":"k"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	keySvc.AssertExpectations(t)
}

func TestWsKey(t *testing.T) {
	keySvc := new(mocks.SecretKeyServiceMock)
	router := setupKeyRouter(NewKeyHandler(keySvc, nil))

	keySvc.On("GenerateWsKey", int64(1), int64(5)).Return("wskey").Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/ws-key", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "wskey", resp["key"])
	keySvc.AssertExpectations(t)
}
