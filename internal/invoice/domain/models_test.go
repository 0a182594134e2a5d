package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceDaysOverdue(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := Invoice{DueDate: due}

	assert.Equal(t, 0, inv.DaysOverdue(due.Add(-time.Hour)))
	assert.Equal(t, 0, inv.DaysOverdue(due.Add(23*time.Hour)))
	assert.Equal(t, 10, inv.DaysOverdue(due.Add(10*24*time.Hour+time.Minute)))
}

func TestInvoicePayable(t *testing.T) {
	assert.True(t, Invoice{Status: StatusOverdue}.IsPayable())
	assert.True(t, Invoice{Status: StatusDraft}.IsPayable())
	assert.False(t, Invoice{Status: StatusPaid}.IsPayable())
	assert.False(t, Invoice{Status: StatusVoid}.IsPayable())
}
