package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxErrorBody caps how much of a failed response is kept for display.
const maxErrorBody = 4096

// ShellInfo is the provisioning response. URL is the WebSocket endpoint;
// Raw keeps the whole body for display.
type ShellInfo struct {
	URL string          `json:"url"`
	Raw json.RawMessage `json:"-"`
}

// Provisioner turns a device identity and credential into a shell endpoint.
type Provisioner interface {
	Provision(ctx context.Context, cfg Config) (*ShellInfo, error)
}

// HTTPProvisioner calls the cloud REST API to start a device shell.
type HTTPProvisioner struct {
	Client *http.Client
}

// NewHTTPProvisioner returns a provisioner with a bounded request timeout.
func NewHTTPProvisioner() *HTTPProvisioner {
	return &HTTPProvisioner{
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func shellURL(cfg Config) string {
	return fmt.Sprintf("https://%s/api/v1/sites/%s/devices/%s/shell",
		cfg.Host, url.PathEscape(cfg.SiteID), url.PathEscape(cfg.DeviceID))
}

func (p *HTTPProvisioner) Provision(ctx context.Context, cfg Config) (*ShellInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, shellURL(cfg), bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, &ProvisioningError{Err: err}
	}
	req.Header.Set("Authorization", "Token "+cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProvisioningError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProvisioningError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		excerpt := body
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &ProvisioningError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	var info ShellInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &ProvisioningError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if info.URL == "" {
		return nil, &ProvisioningError{StatusCode: resp.StatusCode, Body: string(body), Err: errors.New("response has no url")}
	}
	info.Raw = json.RawMessage(body)
	return &info, nil
}
