package notification_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlerpkg "github.com/jobpulse/notifier/internal/handler/notification"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository/repositorytest"
	"github.com/jobpulse/notifier/internal/service/notification"
)

func setup(t *testing.T) (*gin.Engine, *repositorytest.FakeNotificationRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repositorytest.NewFakeNotificationRepo()
	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	h := handlerpkg.NewHandler(svc)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, repo
}

func seed(repo *repositorytest.FakeNotificationRepo, userID uuid.UUID) *model.Notification {
	n := &model.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		JobFingerprint: uuid.NewString(),
		JobTitle:       "Python Developer",
		DeliveryStatus: model.DeliveryStatusSent,
		CreatedAt:      time.Now(),
	}
	repo.Seed(n)
	return n
}

func TestListNotifications(t *testing.T) {
	r, repo := setup(t)
	userID := uuid.New()
	seed(repo, userID)
	seed(repo, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/users/%s/notifications?page=1&page_size=10", userID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Items []*model.Notification `json:"items"`
			Total int64                 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(1), resp.Data.Total)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, userID, resp.Data.Items[0].UserID)
}

func TestListNotifications_InvalidUserID(t *testing.T) {
	r, _ := setup(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/not-a-uuid/notifications", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkRead(t *testing.T) {
	r, repo := setup(t)
	userID := uuid.New()
	n := seed(repo, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/read?user_id=%s", n.ID, userID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, repo.Rows()[0].IsRead)
}

func TestMarkRead_WrongUser(t *testing.T) {
	r, repo := setup(t)
	n := seed(repo, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/notifications/%s/read?user_id=%s", n.ID, uuid.New()), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	r, repo := setup(t)
	userID := uuid.New()
	n := seed(repo, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/api/v1/notifications/%s?user_id=%s", n.ID, userID), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, repo.Rows()[0].IsDeleted)

	// History hides the deleted entry.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/users/%s/notifications", userID), nil)
	r.ServeHTTP(w, req)

	var resp struct {
		Data struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp.Data.Total)
}
