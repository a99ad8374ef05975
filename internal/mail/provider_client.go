package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderClient sends email through an HTTP mail-provider API that accepts
// a JSON payload and answers 202 with a provider-side message id.
type ProviderClient struct {
	url    string
	from   string
	client *http.Client
}

func NewProviderClient(url, from string) *ProviderClient {
	return &ProviderClient{
		url:  url,
		from: from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (c *ProviderClient) Send(ctx context.Context, email Email) (string, error) {
	if email.From == "" {
		email.From = c.from
	}

	reqBody, err := json.Marshal(email)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(body))
	}

	return sr.MessageID, nil
}
