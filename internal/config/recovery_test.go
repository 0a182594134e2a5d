package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRecoveryConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateRecoveryConfig(DefaultRecoveryConfig()))
}

func TestValidateRecoveryConfigRejects(t *testing.T) {
	cases := map[string]func(*RecoveryConfig){
		"offsets_not_increasing": func(c *RecoveryConfig) { c.UrgentAfterDays = c.StandardAfterDays },
		"zero_standard_offset":   func(c *RecoveryConfig) { c.StandardAfterDays = 0 },
		"negative_interval":      func(c *RecoveryConfig) { c.MinInterval = -time.Minute },
		"zero_lease":             func(c *RecoveryConfig) { c.DispatchLease = 0 },
		"hour_out_of_range":      func(c *RecoveryConfig) { c.FallbackContactHour = 24 },
		"day_out_of_range":       func(c *RecoveryConfig) { c.FallbackContactDay = 7 },
		"discount_cap_too_high":  func(c *RecoveryConfig) { c.DiscountCap = 150 },
		"negative_weight":        func(c *RecoveryConfig) { c.ChurnLateWeight = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultRecoveryConfig()
			mutate(&cfg)
			assert.Error(t, ValidateRecoveryConfig(cfg))
		})
	}
}

func TestRecoveryConfigHolderGet(t *testing.T) {
	var nilHolder *RecoveryConfigHolder
	assert.Equal(t, DefaultRecoveryConfig(), nilHolder.Get())

	cfg := DefaultRecoveryConfig()
	cfg.FinalAfterDays = 45
	holder := NewStaticRecoveryConfigHolder(cfg)
	assert.Equal(t, 45, holder.Get().FinalAfterDays)
}
