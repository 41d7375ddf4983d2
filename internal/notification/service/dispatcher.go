package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	notificationdomain "github.com/smallbiznis/wastebill/internal/notification/domain"
	obslogger "github.com/smallbiznis/wastebill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/internal/providers/email"
	"github.com/smallbiznis/wastebill/internal/providers/sms"
	"github.com/smallbiznis/wastebill/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultDrainBatch = 50
	emailTemplate     = "payment_received"
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle `optional:"true"`
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Billing    *config.BillingConfigHolder `optional:"true"`
	Repo       notificationdomain.Repository
	SMS        sms.Provider        `optional:"true"`
	Email      email.Provider      `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher owns the notification outbox. Enqueue writes rows after the
// caller's transaction committed; Drain delivers them.
type Dispatcher struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	billing     *config.BillingConfigHolder
	repo        notificationdomain.Repository
	senders     map[notificationdomain.Channel]notificationdomain.Sender
	clock       clock.Clock
	obsMetrics  *obsmetrics.Metrics
	maxAttempts int

	signal chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(p Params) *Dispatcher {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	billing := p.Billing
	if billing == nil {
		billing = config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	}
	smsProvider := p.SMS
	if smsProvider == nil {
		smsProvider = &sms.NoOpProvider{}
	}
	emailProvider := p.Email
	if emailProvider == nil {
		emailProvider = &email.NoOpProvider{}
	}
	maxAttempts := p.Cfg.Billing.NotificationAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	d := &Dispatcher{
		db:      p.DB,
		log:     p.Log.Named("notification.dispatcher"),
		genID:   p.GenID,
		billing: billing,
		repo:    p.Repo,
		senders: map[notificationdomain.Channel]notificationdomain.Sender{
			notificationdomain.ChannelSMS:   smsSender{provider: smsProvider},
			notificationdomain.ChannelEmail: emailSender{provider: emailProvider},
		},
		clock:       clk,
		obsMetrics:  p.ObsMetrics,
		maxAttempts: maxAttempts,
		signal:      make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				d.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				d.Stop()
				return nil
			},
		})
	}
	return d
}

// Enqueue stores msg for delivery. Failures are logged and swallowed.
func (d *Dispatcher) Enqueue(ctx context.Context, msg notificationdomain.Message) {
	n, err := d.build(msg)
	if err != nil {
		d.log.Warn("notification dropped", zap.String("channel", string(msg.Channel)), zap.Error(err))
		return
	}
	if err := d.repo.Insert(ctx, d.db, n); err != nil {
		d.log.Error("failed to enqueue notification",
			zap.String("channel", string(n.Channel)),
			zap.Error(err),
		)
		d.obsMetrics.RecordNotification(ctx, string(n.Channel), "enqueue_failed")
		return
	}
	d.obsMetrics.RecordNotification(ctx, string(n.Channel), "enqueued")

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) build(msg notificationdomain.Message) (*notificationdomain.Notification, error) {
	if _, ok := d.senders[msg.Channel]; !ok {
		return nil, notificationdomain.ErrInvalidChannel
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, notificationdomain.ErrInvalidRecipient
	}
	if strings.TrimSpace(msg.Body) == "" {
		return nil, notificationdomain.ErrEmptyBody
	}

	var metadata datatypes.JSON
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = datatypes.JSON(raw)
	}

	now := d.clock.Now()
	return &notificationdomain.Notification{
		ID:         d.genID.Generate(),
		CustomerID: msg.CustomerID,
		Channel:    msg.Channel,
		Recipient:  to,
		Subject:    msg.Subject,
		Body:       msg.Body,
		Status:     notificationdomain.StatusPending,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Drain delivers up to limit due notifications. Delivery errors are recorded
// on the row and retried by a later drain until attempts run out.
func (d *Dispatcher) Drain(ctx context.Context, limit int) (notificationdomain.DrainResult, error) {
	if limit <= 0 {
		limit = defaultDrainBatch
	}
	result := notificationdomain.DrainResult{}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		due, err := d.repo.ClaimDue(ctx, tx, d.maxAttempts, limit)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourcePendingNotifying, time.Since(lockStart))
		if err != nil {
			return err
		}

		for _, n := range due {
			sender := d.senders[n.Channel]
			var sendErr error
			if sender == nil {
				sendErr = notificationdomain.ErrInvalidChannel
			} else {
				sendErr = sender.Notify(ctx, n.Recipient, n)
			}

			now := d.clock.Now()
			if sendErr != nil {
				if err := d.repo.MarkFailed(ctx, tx, n.ID, sendErr.Error(), now); err != nil {
					return err
				}
				result.Failed++
				d.obsMetrics.RecordNotification(ctx, string(n.Channel), "failed")
				d.log.Warn("notification delivery failed",
					zap.String("notification_id", n.ID.String()),
					zap.String("channel", string(n.Channel)),
					obslogger.Recipient(n.Recipient),
					zap.Int("attempt", n.Attempts+1),
					zap.Error(sendErr),
				)
				continue
			}
			if err := d.repo.MarkSent(ctx, tx, n.ID, now); err != nil {
				return err
			}
			result.Sent++
			d.obsMetrics.RecordNotification(ctx, string(n.Channel), "sent")
		}
		return nil
	})
	if err != nil {
		return notificationdomain.DrainResult{}, err
	}
	return result, nil
}

// Start runs the in-process worker that drains whenever Enqueue signals.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.stop:
				return
			case <-d.signal:
				if _, err := d.Drain(context.Background(), defaultDrainBatch); err != nil {
					d.log.Error("notification drain failed", zap.Error(err))
				}
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	d.wg.Wait()
}

// PaymentReceived queues the payment confirmation for the customer.
func (d *Dispatcher) PaymentReceived(ctx context.Context, notice paymentdomain.PaymentNotice) {
	cfg := d.billing.Get()
	amount := money.Format(cfg.Currency, notice.Amount)
	balance := BalancePhrase(cfg.Currency, notice.Balance)

	body, err := renderText(cfg.Notifications.PaymentReceived, map[string]string{
		"FirstName": notice.FirstName,
		"Amount":    amount,
		"Balance":   balance,
	})
	if err != nil {
		d.log.Error("invalid payment notification template", zap.Error(err))
		return
	}

	customerID := notice.CustomerID
	metadata := map[string]any{
		"payment_id": notice.PaymentID.String(),
		"kind":       "payment_received",
	}

	if strings.TrimSpace(notice.Phone) != "" {
		d.Enqueue(ctx, notificationdomain.Message{
			CustomerID: &customerID,
			Channel:    notificationdomain.ChannelSMS,
			To:         notice.Phone,
			Body:       body,
			Metadata:   metadata,
		})
	}
	if strings.TrimSpace(notice.Email) != "" {
		html, err := email.Render(emailTemplate, map[string]string{
			"FirstName": notice.FirstName,
			"Message":   body,
			"Amount":    amount,
			"Balance":   balance,
		})
		if err != nil {
			d.log.Error("failed to render payment email", zap.Error(err))
			return
		}
		d.Enqueue(ctx, notificationdomain.Message{
			CustomerID: &customerID,
			Channel:    notificationdomain.ChannelEmail,
			To:         notice.Email,
			Subject:    cfg.Notifications.EmailSubject,
			Body:       html,
			Metadata:   metadata,
		})
	}
}

// BalancePhrase renders a closing balance the way customer messages word it.
func BalancePhrase(currency string, balance int64) string {
	if balance < 0 {
		return "an overpayment of " + money.Format(currency, -balance)
	}
	return money.Format(currency, balance)
}

func renderText(text string, data any) (string, error) {
	tmpl, err := template.New("notification").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
