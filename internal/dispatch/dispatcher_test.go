package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/notifier/internal/dispatch"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/push"
	"github.com/jobpulse/notifier/internal/repository/repositorytest"
	"github.com/jobpulse/notifier/pkg/logger"
)

// fakeGateway pops a scripted error per endpoint on every call; an
// exhausted queue means success.
type fakeGateway struct {
	mu    sync.Mutex
	errs  map[string][]error
	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		errs:  make(map[string][]error),
		calls: make(map[string]int),
	}
}

func (g *fakeGateway) script(endpoint string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[endpoint] = errs
}

func (g *fakeGateway) callCount(endpoint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[endpoint]
}

func (g *fakeGateway) Send(_ context.Context, token *model.DeviceToken, _ push.Payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[token.Endpoint]++
	queue := g.errs[token.Endpoint]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.errs[token.Endpoint] = queue[1:]
	return err
}

func device(userID uuid.UUID, endpoint string) *model.DeviceToken {
	return &model.DeviceToken{
		ID:       uuid.New(),
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   "p256dh",
		Auth:     "auth",
		Active:   true,
	}
}

func subscription(userID uuid.UUID) *model.Subscription {
	return &model.Subscription{
		UserID:               userID,
		Keywords:             []string{"python"},
		NotificationsEnabled: true,
		Timezone:             "UTC",
	}
}

func posting() *model.JobPosting {
	return &model.JobPosting{
		ID:       42,
		Title:    "Senior Python Developer",
		Company:  "Acme",
		Location: "Berlin",
		PostedAt: time.Now(),
	}
}

func newDispatcher(gw push.Gateway, devices *repositorytest.FakeDeviceRepo, ledger *repositorytest.FakeNotificationRepo) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(gw, devices, ledger, nil, dispatch.Config{
		MaxRetries:    1,
		SendTimeout:   time.Second,
		RatePerSecond: 10000,
		RateBurst:     10000,
		TokenCacheTTL: time.Millisecond,
	}, logger.NewLogger(nil), nil)
}

func TestSend_FanOutCollapsesToOneLedgerRow(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	devices := repositorytest.NewFakeDeviceRepo(device(userID, "ep-1"), device(userID, "ep-2"))
	ledger := repositorytest.NewFakeNotificationRepo()

	d := newDispatcher(gw, devices, ledger)
	outcome, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.NoError(t, err)

	assert.Equal(t, dispatch.StatusSent, outcome.Status)
	assert.Equal(t, 2, outcome.Attempted)
	assert.Equal(t, 2, outcome.Delivered)

	rows := ledger.Rows()
	require.Len(t, rows, 1, "two device sends must collapse into one ledger row")
	assert.Equal(t, model.DeliveryStatusSent, rows[0].DeliveryStatus)
	assert.NotNil(t, rows[0].SentAt)
	assert.Equal(t, []string{"python"}, []string(rows[0].MatchedKeywords))
	assert.Equal(t, int64(42), rows[0].JobID)
}

func TestSend_AlreadyNotifiedSkipsGateway(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	devices := repositorytest.NewFakeDeviceRepo(device(userID, "ep-1"))
	ledger := repositorytest.NewFakeNotificationRepo()

	d := newDispatcher(gw, devices, ledger)
	p := posting()

	first, err := d.Send(context.Background(), subscription(userID), p, []string{"python"})
	require.NoError(t, err)
	require.Equal(t, dispatch.StatusSent, first.Status)

	second, err := d.Send(context.Background(), subscription(userID), p, []string{"python"})
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAlreadyNotified, second.Status)
	assert.Equal(t, 1, gw.callCount("ep-1"), "the losing claim must not touch the gateway")
	assert.Len(t, ledger.Rows(), 1)
}

func TestSend_NoDevicesLeavesNoLedgerRow(t *testing.T) {
	userID := uuid.New()
	ledger := repositorytest.NewFakeNotificationRepo()
	d := newDispatcher(newFakeGateway(), repositorytest.NewFakeDeviceRepo(), ledger)

	outcome, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusNoDevices, outcome.Status)
	assert.Empty(t, ledger.Rows(), "user must stay eligible until a device registers")
}

func TestSend_ExpiredTokenDeactivatedOthersDeliver(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	dead := device(userID, "ep-dead")
	live := device(userID, "ep-live")
	gw.script("ep-dead", push.ErrExpired)

	devices := repositorytest.NewFakeDeviceRepo(dead, live)
	ledger := repositorytest.NewFakeNotificationRepo()

	d := newDispatcher(gw, devices, ledger)
	outcome, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.NoError(t, err)

	assert.Equal(t, dispatch.StatusSent, outcome.Status, "one live device is enough")
	assert.Equal(t, 1, outcome.Delivered)
	require.Len(t, devices.Deactivated, 1)
	assert.Equal(t, dead.ID, devices.Deactivated[0])
	assert.Equal(t, 1, gw.callCount("ep-dead"), "terminal errors must not be retried")
}

func TestSend_AllDevicesFailMarksFailed(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	gw.script("ep-1", errors.New("push service returned 400"))

	devices := repositorytest.NewFakeDeviceRepo(device(userID, "ep-1"))
	ledger := repositorytest.NewFakeNotificationRepo()

	d := newDispatcher(gw, devices, ledger)
	outcome, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.NoError(t, err)

	assert.Equal(t, dispatch.StatusFailed, outcome.Status)
	assert.Equal(t, 0, outcome.Delivered)

	rows := ledger.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.DeliveryStatusFailed, rows[0].DeliveryStatus)
	assert.Nil(t, rows[0].SentAt)
}

func TestSend_TransientErrorRetried(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	gw.script("ep-1", push.Transient(errors.New("push service returned 503")))

	devices := repositorytest.NewFakeDeviceRepo(device(userID, "ep-1"))
	ledger := repositorytest.NewFakeNotificationRepo()

	d := newDispatcher(gw, devices, ledger)
	outcome, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.NoError(t, err)

	assert.Equal(t, dispatch.StatusSent, outcome.Status)
	assert.Equal(t, 2, gw.callCount("ep-1"), "transient failure then success")
}

func TestSend_LedgerClaimFailureSurfaces(t *testing.T) {
	userID := uuid.New()
	gw := newFakeGateway()
	devices := repositorytest.NewFakeDeviceRepo(device(userID, "ep-1"))
	ledger := repositorytest.NewFakeNotificationRepo()
	ledger.InsertErr = errors.New("connection reset")

	d := newDispatcher(gw, devices, ledger)
	_, err := d.Send(context.Background(), subscription(userID), posting(), []string{"python"})
	require.Error(t, err)
	assert.Equal(t, 0, gw.callCount("ep-1"))
	assert.Empty(t, ledger.Rows())
}
