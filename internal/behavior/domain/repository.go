package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert replaces the profile of (org, client) wholesale.
	Upsert(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) (*Profile, error)
	ListContactEvents(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]ContactEvent, error)
}
