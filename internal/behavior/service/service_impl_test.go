package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/behavior/repository"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	clientrepo "github.com/smallbiznis/invoicerecovery/internal/client/repository"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/invoicerecovery/internal/invoice/repository"
	"github.com/smallbiznis/invoicerecovery/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	svc     domain.Service
	clients clientdomain.Repository
	invs    invoicedomain.Repository
	orgID   snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		db:      db,
		node:    node,
		clock:   clk,
		clients: clientrepo.Provide(),
		invs:    invoicerepo.Provide(),
		orgID:   node.Generate(),
	}
	f.svc = New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Recovery:    config.NewStaticRecoveryConfigHolder(config.DefaultRecoveryConfig()),
		Repo:        repository.Provide(),
		ClientRepo:  f.clients,
		InvoiceRepo: f.invs,
	})
	return f
}

func (f *fixture) client(t *testing.T, name string) clientdomain.Client {
	t.Helper()
	now := f.clock.Now()
	c := clientdomain.Client{ID: f.node.Generate(), OrgID: f.orgID, Name: name, Email: name + "@example.com", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.clients.Insert(context.Background(), f.db, &c))
	return c
}

func (f *fixture) paidInvoice(t *testing.T, clientID snowflake.ID, due time.Time, lateDays int) {
	t.Helper()
	paidAt := due.AddDate(0, 0, lateDays)
	inv := invoicedomain.Invoice{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		ClientID:    clientID,
		Number:      "INV-" + f.node.Generate().String(),
		AmountCents: 50000,
		Currency:    "USD",
		DueDate:     due,
		Status:      invoicedomain.StatusPaid,
		PaidAt:      &paidAt,
		CreatedAt:   due,
		UpdatedAt:   paidAt,
	}
	require.NoError(t, f.invs.Insert(context.Background(), f.db, &inv))
}

func TestAnalyzeClientPersistsProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme")
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	f.paidInvoice(t, c.ID, due, 0)
	f.paidInvoice(t, c.ID, due, 6)

	first, err := f.svc.AnalyzeClient(ctx, f.orgID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.OnTimePayments)
	assert.Equal(t, 1, first.LatePayments)
	assert.Equal(t, 3.0, first.AvgPaymentDays)
	assert.Equal(t, 50.0, first.OnTimeRate)
	assert.Equal(t, 0.3, first.ChurnRiskScore)

	f.clock.Advance(24 * time.Hour)
	second, err := f.svc.AnalyzeClient(ctx, f.orgID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "re-analysis replaces the existing profile")
	assert.True(t, second.LastAnalyzedAt.After(first.LastAnalyzedAt))

	stored, err := f.svc.GetProfile(ctx, f.orgID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID)
	assert.Equal(t, 3.0, stored.AvgPaymentDays)
	assert.Equal(t, domain.RiskLow, stored.RiskCategory)
}

func TestAnalyzeClientValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AnalyzeClient(ctx, 0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = f.svc.AnalyzeClient(ctx, f.orgID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidClient)

	_, err = f.svc.AnalyzeClient(ctx, f.orgID, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrClientNotFound)

	_, err = f.svc.GetProfile(ctx, f.orgID, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestGetOrAnalyzeCreatesDefaults(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "fresh")

	profile, err := f.svc.GetOrAnalyze(context.Background(), f.orgID, c.ID)
	require.NoError(t, err)
	assert.NotZero(t, profile.ID)
	assert.Equal(t, 10, profile.OptimalContactHour)
	assert.Equal(t, int(time.Tuesday), profile.OptimalContactDay)
	assert.False(t, profile.QualifiesForDiscount(0))
}

func TestAnalyzeOrganizationCountsClientsWithInvoices(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	a := f.client(t, "alpha")
	b := f.client(t, "beta")
	f.client(t, "no-invoices")
	f.paidInvoice(t, a.ID, due, 2)
	f.paidInvoice(t, b.ID, due, 0)

	result, err := f.svc.AnalyzeOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalyzeOrganizationResult{Analyzed: 2}, result)
}
