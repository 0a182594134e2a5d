package testsupport

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"gorm.io/gorm"
)

// SeedClient inserts a client. Empty email or phone are stored as NULL.
func SeedClient(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, name, email, phone string) clientdomain.Client {
	t.Helper()
	now := time.Now().UTC()
	c := clientdomain.Client{ID: node.Generate(), OrgID: orgID, Name: name, Email: email, Phone: phone, CreatedAt: now, UpdatedAt: now}
	err := db.Exec(
		`INSERT INTO clients (id, org_id, name, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrgID, c.Name, nullable(email), nullable(phone), now, now,
	).Error
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

// SeedInvoice inserts an unpaid invoice for the client.
func SeedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, client clientdomain.Client, number string, amountCents int64, due time.Time) invoicedomain.Invoice {
	t.Helper()
	now := time.Now().UTC()
	inv := invoicedomain.Invoice{
		ID:          node.Generate(),
		OrgID:       client.OrgID,
		ClientID:    client.ID,
		Number:      number,
		AmountCents: amountCents,
		Currency:    "USD",
		DueDate:     due.UTC(),
		Status:      invoicedomain.StatusOverdue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.Exec(
		`INSERT INTO invoices (id, org_id, client_id, user_id, number, amount_cents, currency, due_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrgID, inv.ClientID, inv.Number, inv.AmountCents, inv.Currency, inv.DueDate, inv.Status, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
