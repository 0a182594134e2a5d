package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"gorm.io/gorm"
)

const clientColumns = `id, org_id, name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, org_id, name, email, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.Name,
		nullableString(client.Email),
		nullableString(client.Phone),
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Client, error) {
	return r.findOne(ctx, db, `org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phone string) (*domain.Client, error) {
	return r.findOne(ctx, db, `org_id = ? AND phone = ?`, orgID, strings.TrimSpace(phone))
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*domain.Client, error) {
	return r.findOne(ctx, db, `org_id = ? AND lower(email) = ?`, orgID, strings.ToLower(strings.TrimSpace(email)))
}

func (r *repo) ListIDsWithInvoices(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT c.id
		 FROM clients c
		 JOIN invoices i ON i.client_id = c.id AND i.org_id = c.org_id
		 WHERE c.org_id = ?
		 ORDER BY c.id`,
		orgID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE `+where+` ORDER BY id LIMIT 1`,
		args...,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
