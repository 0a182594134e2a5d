package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RecoveryConfig tunes the reminder escalation policy and behavior analysis.
type RecoveryConfig struct {
	StandardAfterDays int `mapstructure:"standardAfterDays"`
	UrgentAfterDays   int `mapstructure:"urgentAfterDays"`
	FinalAfterDays    int `mapstructure:"finalAfterDays"`

	InitialDelay  time.Duration `mapstructure:"initialDelay"`
	MinInterval   time.Duration `mapstructure:"minInterval"`
	DispatchLease time.Duration `mapstructure:"dispatchLease"`

	FallbackContactHour int `mapstructure:"fallbackContactHour"`
	FallbackContactDay  int `mapstructure:"fallbackContactDay"`

	DiscountCap             float64       `mapstructure:"discountCap"`
	DiscountResponseWindow  time.Duration `mapstructure:"discountResponseWindow"`
	DiscountMinPaidInvoices int           `mapstructure:"discountMinPaidInvoices"`

	ChurnLateWeight         float64 `mapstructure:"churnLateWeight"`
	ChurnUnresponsiveWeight float64 `mapstructure:"churnUnresponsiveWeight"`

	PaymentKeywords []string `mapstructure:"paymentKeywords"`
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		StandardAfterDays:       7,
		UrgentAfterDays:         14,
		FinalAfterDays:          30,
		InitialDelay:            time.Hour,
		MinInterval:             24 * time.Hour,
		DispatchLease:           5 * time.Minute,
		FallbackContactHour:     10,
		FallbackContactDay:      int(time.Tuesday),
		DiscountCap:             10,
		DiscountResponseWindow:  7 * 24 * time.Hour,
		DiscountMinPaidInvoices: 2,
		ChurnLateWeight:         0.6,
		ChurnUnresponsiveWeight: 0.4,
		PaymentKeywords: []string{
			"paid",
			"payment sent",
			"payment made",
			"transferred",
			"settled",
			"wired",
		},
	}
}

type RecoveryConfigHolder struct {
	current atomic.Value // holds RecoveryConfig
}

// NewStaticRecoveryConfigHolder wraps a fixed config, mainly for tests and tools.
func NewStaticRecoveryConfigHolder(cfg RecoveryConfig) *RecoveryConfigHolder {
	holder := &RecoveryConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewRecoveryConfigHolder reads recovery.yml and reloads it on change.
func NewRecoveryConfigHolder(log *zap.Logger) (*RecoveryConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.recovery")

	v := viper.New()
	v.SetConfigName("recovery")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/invoicerecovery")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setRecoveryDefaults(v, DefaultRecoveryConfig())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg RecoveryConfig
	if err := v.UnmarshalKey("recovery", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateRecoveryConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticRecoveryConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RecoveryConfig
		if err := v.UnmarshalKey("recovery", &updated); err != nil {
			log.Warn("recovery config reload failed", zap.Error(err))
			return
		}
		if err := ValidateRecoveryConfig(updated); err != nil {
			log.Warn("invalid recovery config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("recovery config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RecoveryConfigHolder) Get() RecoveryConfig {
	if h == nil {
		return DefaultRecoveryConfig()
	}
	cfg, ok := h.current.Load().(RecoveryConfig)
	if !ok {
		return DefaultRecoveryConfig()
	}
	return cfg
}

func setRecoveryDefaults(v *viper.Viper, d RecoveryConfig) {
	v.SetDefault("recovery.standardAfterDays", d.StandardAfterDays)
	v.SetDefault("recovery.urgentAfterDays", d.UrgentAfterDays)
	v.SetDefault("recovery.finalAfterDays", d.FinalAfterDays)
	v.SetDefault("recovery.initialDelay", d.InitialDelay)
	v.SetDefault("recovery.minInterval", d.MinInterval)
	v.SetDefault("recovery.dispatchLease", d.DispatchLease)
	v.SetDefault("recovery.fallbackContactHour", d.FallbackContactHour)
	v.SetDefault("recovery.fallbackContactDay", d.FallbackContactDay)
	v.SetDefault("recovery.discountCap", d.DiscountCap)
	v.SetDefault("recovery.discountResponseWindow", d.DiscountResponseWindow)
	v.SetDefault("recovery.discountMinPaidInvoices", d.DiscountMinPaidInvoices)
	v.SetDefault("recovery.churnLateWeight", d.ChurnLateWeight)
	v.SetDefault("recovery.churnUnresponsiveWeight", d.ChurnUnresponsiveWeight)
	v.SetDefault("recovery.paymentKeywords", d.PaymentKeywords)
}

func ValidateRecoveryConfig(cfg RecoveryConfig) error {
	if cfg.StandardAfterDays <= 0 || cfg.UrgentAfterDays <= cfg.StandardAfterDays || cfg.FinalAfterDays <= cfg.UrgentAfterDays {
		return errors.New("recovery stage offsets must be positive and strictly increasing")
	}
	if cfg.InitialDelay < 0 || cfg.MinInterval < 0 || cfg.DispatchLease <= 0 {
		return errors.New("recovery intervals must not be negative and dispatchLease must be positive")
	}
	if cfg.FallbackContactHour < 0 || cfg.FallbackContactHour > 23 {
		return errors.New("recovery.fallbackContactHour must be within 0-23")
	}
	if cfg.FallbackContactDay < 0 || cfg.FallbackContactDay > 6 {
		return errors.New("recovery.fallbackContactDay must be within 0-6")
	}
	if cfg.DiscountCap < 0 || cfg.DiscountCap > 100 {
		return errors.New("recovery.discountCap must be within 0-100")
	}
	if cfg.ChurnLateWeight < 0 || cfg.ChurnUnresponsiveWeight < 0 {
		return errors.New("recovery churn weights must not be negative")
	}
	return nil
}
