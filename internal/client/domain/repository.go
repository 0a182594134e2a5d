package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("client_not_found")

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	FindByPhone(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phone string) (*Client, error)
	FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*Client, error)
	// ListIDsWithInvoices returns every client of the organization that has at least one invoice.
	ListIDsWithInvoices(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]snowflake.ID, error)
}
