package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("invoice_not_found")

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	// MarkPaid transitions the invoice to paid and reports whether this call changed it.
	MarkPaid(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	ListPaidByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]Invoice, error)
}
