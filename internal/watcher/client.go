package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

const defaultTimeout = 10 * time.Second

// Client talks to the blockchain watcher microservice. The watcher tracks the
// chain for contribution deposits and exposes a small JSON API: bootstrap
// handshake, address validation, and per-contribution deposit address lookup.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a watcher client for the given endpoint.
func NewClient(endpoint, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:  endpoint,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the watcher response wrapper. A non-empty error field means the
// request failed even when HTTP status is 200.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Get performs a GET request against the watcher API.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	u := c.endpoint + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Post performs a POST request with a JSON body against the watcher API.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ExternalService(err, "watcher unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalService(err, "failed to read watcher response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.ExternalService(
			fmt.Errorf("status %d: %s", resp.StatusCode, raw),
			"watcher request failed")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.ExternalService(err, "invalid watcher response")
	}
	if env.Error != "" {
		return nil, apperrors.ExternalService(fmt.Errorf("%s", env.Error), "watcher returned an error")
	}
	return env.Data, nil
}

// Bootstrap performs the startup handshake: it hands the watcher the set of
// contribution ids the portal still considers pending plus the latest
// confirmed transaction id, so the watcher can replay missed confirmations.
func (c *Client) Bootstrap(ctx context.Context, pendingContributionIDs []uuid.UUID, latestTxID string) error {
	_, err := c.Post(ctx, "/bootstrap", map[string]any{
		"pendingContributionIds": pendingContributionIDs,
		"latestTxId":             latestTxID,
	})
	return err
}

// ValidateAddress asks the watcher whether addr is a valid shielded address.
func (c *Client) ValidateAddress(ctx context.Context, addr string) (bool, error) {
	params := url.Values{}
	params.Set("address", addr)
	data, err := c.Get(ctx, "/validate/address", params)
	if err != nil {
		return false, err
	}
	var result struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, apperrors.ExternalService(err, "invalid watcher response")
	}
	return result.Valid, nil
}

// GetContributionAddress returns the deposit address for a contribution.
func (c *Client) GetContributionAddress(ctx context.Context, contributionID uuid.UUID) (string, error) {
	data, err := c.Get(ctx, "/contribution/addresses/"+contributionID.String(), nil)
	if err != nil {
		return "", err
	}
	var result struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", apperrors.ExternalService(err, "invalid watcher response")
	}
	return result.Address, nil
}
