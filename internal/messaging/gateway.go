package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type pushRequest struct {
	To           string            `json:"to"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// HTTPGateway posts notifications to a push service endpoint.
type HTTPGateway struct {
	client *resty.Client
}

func NewHTTPGateway(endpoint, serverKey string, timeout time.Duration) *HTTPGateway {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+serverKey)
	return &HTTPGateway{client: client}
}

func (g *HTTPGateway) Send(ctx context.Context, token string, n Notification) error {
	var out pushResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(pushRequest{To: token, Notification: Notification{Title: n.Title, Body: n.Body}, Data: n.Data}).
		SetResult(&out).
		Post("")
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push service returned %d", resp.StatusCode())
	}
	if out.Failure > 0 {
		return fmt.Errorf("push service rejected token")
	}
	return nil
}

// LogGateway only logs what would be sent. Used when no push endpoint is configured.
type LogGateway struct {
	logger *zap.SugaredLogger
}

func NewLogGateway(logger *zap.SugaredLogger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(_ context.Context, token string, n Notification) error {
	g.logger.Infow("notification", "token", maskToken(token), "title", n.Title, "body", n.Body, "data", n.Data)
	return nil
}

// maskToken keeps a short prefix so log lines can still be correlated.
func maskToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}
