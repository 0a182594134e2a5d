package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// AnalyzeOrganizationResult summarizes a batch analysis pass.
type AnalyzeOrganizationResult struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
}

type Service interface {
	AnalyzeClient(ctx context.Context, orgID, clientID snowflake.ID) (Profile, error)
	AnalyzeOrganization(ctx context.Context, orgID snowflake.ID) (AnalyzeOrganizationResult, error)
	GetProfile(ctx context.Context, orgID, clientID snowflake.ID) (Profile, error)
	// GetOrAnalyze returns the stored profile, analysing the client first when none exists.
	GetOrAnalyze(ctx context.Context, orgID, clientID snowflake.ID) (Profile, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrClientNotFound      = errors.New("client_not_found")
	ErrProfileNotFound     = errors.New("profile_not_found")
)
