package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	notificationdomain "github.com/smallbiznis/wastebill/internal/notification/domain"
	"github.com/smallbiznis/wastebill/internal/notification/repository"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, to string, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+": "+message)
	return nil
}

type fakeEmail struct {
	subjects []string
	err      error
}

func (f *fakeEmail) Send(_ context.Context, to []string, subject string, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, subject string, _ string, _ any) error {
	return f.Send(ctx, to, subject, "")
}

func newDispatcher(t *testing.T, smsProvider *fakeSMS, emailProvider *fakeEmail) (*Dispatcher, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	d := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg:   config.Config{Billing: config.BillingDefaults{NotificationAttempts: 2}},
		Repo:  repository.Provide(),
		SMS:   smsProvider,
		Email: emailProvider,
		Clock: clock.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	return d, db
}

func countByStatus(t *testing.T, db *gorm.DB, status notificationdomain.Status) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&notificationdomain.Notification{}).Where("status = ?", string(status)).Count(&n).Error)
	return n
}

func TestPaymentReceivedQueuesAndDelivers(t *testing.T) {
	smsProvider := &fakeSMS{}
	emailProvider := &fakeEmail{}
	d, db := newDispatcher(t, smsProvider, emailProvider)
	ctx := context.Background()

	d.PaymentReceived(ctx, paymentdomain.PaymentNotice{
		CustomerID: 42,
		FirstName:  "Amina",
		Phone:      "254700000001",
		Email:      "amina@example.com",
		Amount:     150000,
		Balance:    -25000,
		PaymentID:  7,
	})
	assert.Equal(t, int64(2), countByStatus(t, db, notificationdomain.StatusPending))

	result, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, smsProvider.sent, 1)
	assert.Equal(t,
		"254700000001: Dear Amina, payment of KES 1,500.00 received successfully. Your balance is an overpayment of KES 250.00. Thank you for your payment.",
		smsProvider.sent[0],
	)
	assert.Equal(t, []string{"Payment received"}, emailProvider.subjects)
	assert.Equal(t, int64(2), countByStatus(t, db, notificationdomain.StatusSent))

	again, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Sent)
}

func TestDrainRetriesFailuresUntilAttemptsRunOut(t *testing.T) {
	smsProvider := &fakeSMS{err: errors.New("gateway down")}
	d, db := newDispatcher(t, smsProvider, &fakeEmail{})
	ctx := context.Background()

	d.Enqueue(ctx, notificationdomain.Message{Channel: notificationdomain.ChannelSMS, To: "254700000002", Body: "hello"})

	first, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)

	second, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Failed)

	third, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Failed+third.Sent)

	var row notificationdomain.Notification
	require.NoError(t, db.Model(&notificationdomain.Notification{}).First(&row).Error)
	assert.Equal(t, notificationdomain.StatusFailed, row.Status)
	assert.Equal(t, 2, row.Attempts)
	assert.Equal(t, "gateway down", row.LastError)
}

func TestEnqueueDropsInvalidMessages(t *testing.T) {
	d, db := newDispatcher(t, &fakeSMS{}, &fakeEmail{})
	ctx := context.Background()

	d.Enqueue(ctx, notificationdomain.Message{Channel: "pigeon", To: "x", Body: "hi"})
	d.Enqueue(ctx, notificationdomain.Message{Channel: notificationdomain.ChannelSMS, To: " ", Body: "hi"})
	d.Enqueue(ctx, notificationdomain.Message{Channel: notificationdomain.ChannelSMS, To: "254700000003"})

	assert.Equal(t, int64(0), countByStatus(t, db, notificationdomain.StatusPending))
}

func TestWorkerDrainsOnSignal(t *testing.T) {
	smsProvider := &fakeSMS{}
	d, db := newDispatcher(t, smsProvider, &fakeEmail{})
	d.Start()
	defer d.Stop()

	d.Enqueue(context.Background(), notificationdomain.Message{Channel: notificationdomain.ChannelSMS, To: "254700000004", Body: "hi"})

	require.Eventually(t, func() bool {
		return countByStatus(t, db, notificationdomain.StatusSent) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBalancePhrase(t *testing.T) {
	assert.Equal(t, "KES 1,200.00", BalancePhrase("KES", 120000))
	assert.Equal(t, "KES 0.00", BalancePhrase("KES", 0))
	assert.Equal(t, "an overpayment of KES 50.00", BalancePhrase("KES", -5000))
}
