package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/smallbiznis/invoicerecovery/pkg/phone"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL       string
	APIKey        string
	DeviceID      string
	DefaultRegion string
	RatePerSecond float64
}

// Client sends messages through a WhatsApp HTTP gateway.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	region   string
	http     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Results struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		deviceID: cfg.DeviceID,
		region:   cfg.DefaultRegion,
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond))),
		log:      log.Named("whatsapp"),
	}
}

func (c *Client) Send(ctx context.Context, msg channel.Message) (channel.Delivery, error) {
	number, err := phone.NormalizeE164(msg.Recipient, c.region)
	if err != nil {
		return channel.Delivery{}, fmt.Errorf("%w: %v", channel.ErrMissingRecipient, err)
	}

	rendered, err := channel.Render(msg.Template, msg.Variables)
	if err != nil {
		return channel.Delivery{}, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return channel.Delivery{}, err
	}

	body, err := json.Marshal(sendRequest{
		Phone:   phone.Digits(number),
		Message: formatMessage(rendered),
	})
	if err != nil {
		return channel.Delivery{}, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return channel.Delivery{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return channel.Delivery{}, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		return channel.Delivery{}, fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendResponse
	deliveryID := ""
	if err := json.Unmarshal(data, &parsed); err == nil {
		deliveryID = strings.TrimSpace(parsed.Results.MessageID)
	}
	if deliveryID == "" {
		deliveryID = ulid.Make().String()
	}

	c.log.Debug("whatsapp.sent", zap.String("template", string(msg.Template)), zap.String("delivery_id", deliveryID))
	return channel.Delivery{DeliveryID: deliveryID}, nil
}

func formatMessage(r channel.Rendered) string {
	if r.Subject == "" {
		return r.Body
	}
	return "*" + r.Subject + "*\n\n" + r.Body
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey))
}

var _ channel.Sender = (*Client)(nil)
