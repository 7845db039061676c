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

	"social-service/internal/comments"
	"social-service/internal/domain"
	"social-service/internal/mocks"
	"social-service/internal/models"
)

func setupCommentRouter(handler *CommentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/posts/:post_id/comments", handler.Create)
	r.POST("/posts/:post_id/comments/batch", handler.BatchCreate)
	r.GET("/posts/:post_id/comments", handler.Tree)
	r.GET("/posts/:post_id/status", handler.PostStatus)
	r.DELETE("/posts/:post_id", handler.DeletePost)
	r.DELETE("/comments/:comment_id", handler.DeleteComment)
	r.POST("/reactions", handler.React)
	return r
}

func TestCreateCommentSuccess(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("CreateComment", mock.Anything, mock.MatchedBy(func(in comments.CreateCommentInput) bool {
		return in.PostID == 5 && in.AuthorID == 1 && in.Content == "nice" && in.IdempotencyKey == "k1"
	})).Return(models.Comment{ID: 9, Content: "nice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/posts/5/comments",
		bytes.NewBufferString(`{"content":"nice","idempotency_key":"k1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	commentSvc.AssertExpectations(t)
}

func TestCreateCommentStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"post deleted", domain.ErrGone, http.StatusGone},
		{"post locked", domain.ErrLocked, http.StatusLocked},
		{"rate limited", domain.ErrTooManyRequests, http.StatusTooManyRequests},
		{"depth", domain.Validation("comment depth exceeds maximum of two levels"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			commentSvc := new(mocks.CommentServiceMock)
			router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

			commentSvc.On("CreateComment", mock.Anything, mock.Anything).
				Return(models.Comment{}, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/posts/5/comments",
				bytes.NewBufferString(`{"content":"x","idempotency_key":"k"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			commentSvc.AssertExpectations(t)
		})
	}
}

func TestBatchCreateComments(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("BatchCreateComments", mock.Anything, mock.MatchedBy(func(inputs []comments.CreateCommentInput) bool {
		return len(inputs) == 2 && inputs[0].PostID == 5 && inputs[1].PostID == 5
	})).Return([]models.Comment{{ID: 1}, {ID: 2}}, nil).Once()

	body := `{"comments":[{"content":"a","idempotency_key":"k1"},{"content":"b","idempotency_key":"k2"}]}`
	req := httptest.NewRequest(http.MethodPost, "/posts/5/comments/batch", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	commentSvc.AssertExpectations(t)
}

func TestBatchCreateEmptyRejected(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	req := httptest.NewRequest(http.MethodPost, "/posts/5/comments/batch",
		bytes.NewBufferString(`{"comments":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	commentSvc.AssertNotCalled(t, "BatchCreateComments")
}

func TestTree(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("GetCommentsTree", mock.Anything, int64(5)).
		Return([]models.CommentThread{{Comment: models.Comment{ID: 1}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/posts/5/comments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp, "comments")
	commentSvc.AssertExpectations(t)
}

func TestDeleteCommentNotFound(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("DeleteCommentSoft", mock.Anything, int64(9), int64(1)).
		Return(domain.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/comments/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	commentSvc.AssertExpectations(t)
}

func TestPostStatus(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("CheckPostStatus", mock.Anything, int64(5)).
		Return(models.PostStatus{Exists: true, Locked: true}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/posts/5/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	commentSvc.AssertExpectations(t)
}

func TestReactFavoriteOwnContent(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("ReactIdempotent", mock.Anything, int16(1), int64(5), int64(1), int16(2), "k").
		Return(domain.Validation("cannot favorite your own content")).Once()

	req := httptest.NewRequest(http.MethodPost, "/reactions",
		bytes.NewBufferString(`{"resource_type":1,"resource_id":5,"reaction_type":2,"idempotency_key":"k"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	commentSvc.AssertExpectations(t)
}

func TestReactSuccess(t *testing.T) {
	commentSvc := new(mocks.CommentServiceMock)
	router := setupCommentRouter(NewCommentHandler(commentSvc, nil))

	commentSvc.On("ReactIdempotent", mock.Anything, int16(2), int64(7), int64(1), int16(1), "k2").
		Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/reactions",
		bytes.NewBufferString(`{"resource_type":2,"resource_id":7,"reaction_type":1,"idempotency_key":"k2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	commentSvc.AssertExpectations(t)
}
