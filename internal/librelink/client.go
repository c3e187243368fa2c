// Package librelink pulls glucose history from a LibreLinkUp proxy.
package librelink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
)

// ClientVersion is the app version the proxy forwards upstream.
const ClientVersion = "4.9.0"

type Client struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
}

func NewClient(url, username, password string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type historyRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ClientVersion string `json:"clientVersion"`
}

type historyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		History []domain.RawReading `json:"history"`
	} `json:"data"`
}

// History returns every reading the proxy knows about, in the order received.
func (c *Client) History(ctx context.Context) ([]domain.RawReading, error) {
	payload, err := json.Marshal(historyRequest{
		Username:      c.username,
		Password:      c.password,
		ClientVersion: ClientVersion,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("librelink request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("librelink: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("librelink: decode: %w", err)
	}
	if !out.Success || out.Data == nil || out.Data.History == nil {
		if out.Message != "" {
			return nil, fmt.Errorf("librelink: %s", out.Message)
		}
		return nil, fmt.Errorf("librelink: no history data in response")
	}
	return out.Data.History, nil
}
