package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is the payer of an invoice. Phone is stored in E.164.
type Client struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name      string       `gorm:"not null" json:"name"`
	Email     string       `json:"email,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasEmail reports whether the client can be reached by e-mail.
func (c Client) HasEmail() bool {
	return c.Email != ""
}

// HasPhone reports whether the client can be reached on a phone channel.
func (c Client) HasPhone() bool {
	return c.Phone != ""
}
