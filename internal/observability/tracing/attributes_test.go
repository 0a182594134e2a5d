package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsContactData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/orgs/:org_id/webhooks/inbound"),
		attribute.String("recipient", "+15551234567"),
		attribute.String("client_email", "a@example.com"),
		attribute.Int("http.status_code", 200),
	)

	keys := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, string(attr.Key))
	}
	assert.Equal(t, []string{"http.route", "http.status_code"}, keys)
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New(strings.Repeat("x", 1000)))
	assert.Len(t, err.Error(), maxAttributeLength)
	assert.Nil(t, SafeError(nil))
}
