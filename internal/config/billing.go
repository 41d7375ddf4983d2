package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the settings operators may change without a restart.
type BillingConfig struct {
	Currency      string                `mapstructure:"currency"`
	AgeBuckets    []AgeBucket           `mapstructure:"ageBuckets"`
	Notifications NotificationTemplates `mapstructure:"notifications"`
}

// AgeBucket groups customers by how many months of charges they owe.
// A nil MaxMonths marks the open-ended last bucket.
type AgeBucket struct {
	Label     string `mapstructure:"label"`
	MinMonths int    `mapstructure:"minMonths"`
	MaxMonths *int   `mapstructure:"maxMonths"`
}

func (b AgeBucket) Contains(months int) bool {
	if months < b.MinMonths {
		return false
	}
	return b.MaxMonths == nil || months <= *b.MaxMonths
}

type NotificationTemplates struct {
	PaymentReceived string `mapstructure:"paymentReceived"`
	EmailSubject    string `mapstructure:"emailSubject"`
}

const DefaultPaymentReceivedTemplate = "Dear {{.FirstName}}, payment of {{.Amount}} received successfully. Your balance is {{.Balance}}. Thank you for your payment."

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency: "KES",
		AgeBuckets: []AgeBucket{
			{Label: "1", MinMonths: 1, MaxMonths: intPtr(1)},
			{Label: "2", MinMonths: 2, MaxMonths: intPtr(2)},
			{Label: "3", MinMonths: 3, MaxMonths: intPtr(3)},
			{Label: "4", MinMonths: 4, MaxMonths: intPtr(4)},
			{Label: "5", MinMonths: 5, MaxMonths: intPtr(5)},
			{Label: "6+", MinMonths: 6, MaxMonths: nil},
		},
		Notifications: NotificationTemplates{
			PaymentReceived: DefaultPaymentReceivedTemplate,
			EmailSubject:    "Payment received",
		},
	}
}

func intPtr(v int) *int { return &v }

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, mostly for tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/wastebill/config")
	v.AddConfigPath("/etc/wastebill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WASTEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return BillingConfig{}, err
	}
	defaults := DefaultBillingConfig()
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = defaults.Currency
	}
	if len(cfg.AgeBuckets) == 0 {
		cfg.AgeBuckets = defaults.AgeBuckets
	}
	if strings.TrimSpace(cfg.Notifications.PaymentReceived) == "" {
		cfg.Notifications.PaymentReceived = defaults.Notifications.PaymentReceived
	}
	if strings.TrimSpace(cfg.Notifications.EmailSubject) == "" {
		cfg.Notifications.EmailSubject = defaults.Notifications.EmailSubject
	}
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if len(cfg.AgeBuckets) == 0 {
		return errors.New("billing.ageBuckets cannot be empty")
	}
	for _, bucket := range cfg.AgeBuckets {
		if strings.TrimSpace(bucket.Label) == "" {
			return errors.New("billing.ageBuckets label cannot be empty")
		}
		if bucket.MaxMonths != nil && *bucket.MaxMonths < bucket.MinMonths {
			return errors.New("billing.ageBuckets maxMonths must be >= minMonths")
		}
	}
	if strings.TrimSpace(cfg.Notifications.PaymentReceived) == "" {
		return errors.New("billing.notifications.paymentReceived cannot be empty")
	}
	return nil
}
