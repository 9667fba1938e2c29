package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository/repositorytest"
	"github.com/jobpulse/notifier/internal/service/notification"
	apperrors "github.com/jobpulse/notifier/pkg/errors"
)

func seed(repo *repositorytest.FakeNotificationRepo, userID uuid.UUID, fingerprint string, createdAt time.Time) *model.Notification {
	n := &model.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		JobFingerprint: fingerprint,
		JobTitle:       "Python Developer",
		DeliveryStatus: model.DeliveryStatusSent,
		CreatedAt:      createdAt,
	}
	repo.Seed(n)
	return n
}

func TestHistory_PaginatesNewestFirst(t *testing.T) {
	repo := repositorytest.NewFakeNotificationRepo()
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seed(repo, userID, uuid.NewString(), base.Add(time.Duration(i)*time.Minute))
	}
	seed(repo, uuid.New(), uuid.NewString(), base)

	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	page, total, err := svc.History(context.Background(), userID, model.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
}

func TestMarkRead(t *testing.T) {
	repo := repositorytest.NewFakeNotificationRepo()
	userID := uuid.New()
	n := seed(repo, userID, "fp-1", time.Now())

	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	require.NoError(t, svc.MarkRead(context.Background(), userID, n.ID))

	rows := repo.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsRead)
}

func TestMarkRead_WrongUserIsNotFound(t *testing.T) {
	repo := repositorytest.NewFakeNotificationRepo()
	n := seed(repo, uuid.New(), "fp-1", time.Now())

	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	err := svc.MarkRead(context.Background(), uuid.New(), n.ID)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestDelete_HidesFromHistoryButKeepsLedgerRow(t *testing.T) {
	repo := repositorytest.NewFakeNotificationRepo()
	userID := uuid.New()
	n := seed(repo, userID, "fp-1", time.Now())

	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	require.NoError(t, svc.Delete(context.Background(), userID, n.ID))

	_, total, err := svc.History(context.Background(), userID, model.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	exists, err := repo.Exists(context.Background(), userID, "fp-1")
	require.NoError(t, err)
	assert.True(t, exists, "deletion must not reopen the dedup slot")
}

func TestDelete_TwiceIsNotFound(t *testing.T) {
	repo := repositorytest.NewFakeNotificationRepo()
	userID := uuid.New()
	n := seed(repo, userID, "fp-1", time.Now())

	svc := notification.NewService(repo, &repositorytest.FakeCycleRunRepo{})
	require.NoError(t, svc.Delete(context.Background(), userID, n.ID))

	var appErr *apperrors.AppError
	require.ErrorAs(t, svc.Delete(context.Background(), userID, n.ID), &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}
