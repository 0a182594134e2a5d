package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

func orgIDFromContext(c *gin.Context) snowflake.ID {
	value, ok := c.Get(orgIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(snowflake.ID)
	return id
}

func parseRequiredID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("invalid_snowflake_id")
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}

// pathID parses a snowflake path parameter, aborting with a validation error on failure.
func pathID(c *gin.Context, name, field string) (snowflake.ID, bool) {
	id, err := parseRequiredID(c.Param(name))
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_"+field, "invalid "+field+" id"))
		return 0, false
	}
	return id, true
}

// parseOptionalTime accepts RFC3339 or a plain date, which resolves to midnight UTC.
func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}
