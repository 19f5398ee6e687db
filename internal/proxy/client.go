package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"avatarchat/internal/domain"
)

// StatusError is a non-200 answer from the proxy.
type StatusError struct {
	Route  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Route, e.Status)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Route, e.Status, e.Body)
}

// Client calls the credential proxy routes.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
	}
}

// IssueToken implements ports.TokenSource.
func (c *Client) IssueToken(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, routeToken, nil)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("%s returned an empty token", routeToken)
	}
	return token, nil
}

type listSessionsResponse struct {
	Code int `json:"code"`
	Data struct {
		Sessions []domain.VendorSession `json:"sessions"`
	} `json:"data"`
	Message string `json:"message"`
}

// ListSessions returns the vendor's live sessions.
func (c *Client) ListSessions(ctx context.Context) ([]domain.VendorSession, error) {
	body, err := c.do(ctx, http.MethodGet, routeListSessions, nil)
	if err != nil {
		return nil, err
	}
	var resp listSessionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode session list: %w", err)
	}
	return resp.Data.Sessions, nil
}

// StopSession stops a vendor session by id and returns the vendor payload.
func (c *Client) StopSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	payload, err := json.Marshal(stopSessionRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, routeStopSession, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, route string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", route, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", route, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Route: route, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
