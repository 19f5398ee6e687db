package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"avatarchat/internal/domain"
	"avatarchat/internal/metrics"
	"avatarchat/internal/telemetry"
)

const DefaultAPIBaseURL = "https://api.heygen.com"

const (
	endpointCreateToken    = "/v1/streaming.create_token"
	endpointList           = "/v1/streaming.list"
	endpointStop           = "/v1/streaming.stop"
	endpointNew            = "/v1/streaming.new"
	endpointStart          = "/v1/streaming.start"
	endpointTask           = "/v1/streaming.task"
	endpointStartListening = "/v1/streaming.start_listening"
	endpointStopListening  = "/v1/streaming.stop_listening"
	endpointInterrupt      = "/v1/streaming.interrupt"
)

var ErrMissingAPIKey = errors.New("HEYGEN_API_KEY is not configured")

// APIError is a non-success vendor response.
type APIError struct {
	Endpoint string
	Status   int
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("heygen %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("heygen %s returned %d", e.Endpoint, e.Status)
}

// Config controls the vendor REST client.
type Config struct {
	APIKey     string
	APIBaseURL string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the vendor REST API. API-key calls back the credential
// proxy; token calls back the streaming avatar client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		http:    httpClient,
		logger:  cfg.Logger,
	}
}

// HasAPIKey reports whether the server-held secret is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// BaseURL returns the vendor API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateToken issues a short-lived streaming token.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	if !c.HasAPIKey() {
		return "", ErrMissingAPIKey
	}
	payload, err := c.do(ctx, http.MethodPost, endpointCreateToken, c.apiKeyAuth, nil)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	var data struct {
		Token string `json:"token"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
	}
	if strings.TrimSpace(data.Token) == "" {
		return "", errors.New("token response did not contain a token")
	}
	return data.Token, nil
}

// ListSessions returns the vendor's session list payload verbatim.
func (c *Client) ListSessions(ctx context.Context) (json.RawMessage, error) {
	if !c.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}
	return c.do(ctx, http.MethodGet, endpointList, c.apiKeyAuth, nil)
}

// StopSession terminates a session by id with the API key and returns the
// vendor payload verbatim.
func (c *Client) StopSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if !c.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}
	return c.do(ctx, http.MethodPost, endpointStop, c.apiKeyAuth, map[string]string{"session_id": sessionID})
}

// SessionInfo describes a newly created streaming session.
type SessionInfo struct {
	SessionID        string `json:"session_id"`
	URL              string `json:"url"`
	AccessToken      string `json:"access_token"`
	RealtimeEndpoint string `json:"realtime_endpoint"`
	SessionDuration  int    `json:"session_duration_limit"`
}

type newSessionRequest struct {
	Quality            domain.AvatarQuality `json:"quality,omitempty"`
	AvatarName         string               `json:"avatar_name,omitempty"`
	KnowledgeID        string               `json:"knowledge_id,omitempty"`
	Voice              domain.VoiceSettings `json:"voice"`
	Language           string               `json:"language,omitempty"`
	Version            string               `json:"version"`
	VideoEncoding      string               `json:"video_encoding"`
	Source             string               `json:"source"`
	DisableIdleTimeout bool                 `json:"disable_idle_timeout"`
}

// NewSession creates a streaming session with a streaming token.
func (c *Client) NewSession(ctx context.Context, token string, opts domain.StartOptions) (SessionInfo, error) {
	body := newSessionRequest{
		Quality:            opts.Quality,
		AvatarName:         opts.AvatarName,
		KnowledgeID:        opts.KnowledgeID,
		Voice:              opts.Voice,
		Language:           opts.Language,
		Version:            "v2",
		VideoEncoding:      "H264",
		Source:             "sdk",
		DisableIdleTimeout: opts.DisableIdleTimeout,
	}
	var info SessionInfo
	if err := c.doData(ctx, endpointNew, token, body, &info); err != nil {
		return SessionInfo{}, err
	}
	if info.SessionID == "" {
		return SessionInfo{}, errors.New("session response did not contain a session id")
	}
	return info, nil
}

// StartSession starts media for a created session.
func (c *Client) StartSession(ctx context.Context, token, sessionID string) error {
	return c.doData(ctx, endpointStart, token, map[string]string{"session_id": sessionID}, nil)
}

// TaskResult is the vendor's answer to a speak task.
type TaskResult struct {
	TaskID     string  `json:"task_id"`
	DurationMS float64 `json:"duration_ms"`
}

type taskRequest struct {
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	TaskType  domain.TaskType `json:"task_type"`
	TaskMode  domain.TaskMode `json:"task_mode"`
}

// SendTask asks the avatar to speak.
func (c *Client) SendTask(ctx context.Context, token, sessionID string, req domain.SpeakRequest) (TaskResult, error) {
	var result TaskResult
	err := c.doData(ctx, endpointTask, token, taskRequest{
		SessionID: sessionID,
		Text:      req.Text,
		TaskType:  req.TaskType,
		TaskMode:  req.TaskMode,
	}, &result)
	return result, err
}

func (c *Client) StartListening(ctx context.Context, token, sessionID string) error {
	return c.doData(ctx, endpointStartListening, token, map[string]string{"session_id": sessionID}, nil)
}

func (c *Client) StopListening(ctx context.Context, token, sessionID string) error {
	return c.doData(ctx, endpointStopListening, token, map[string]string{"session_id": sessionID}, nil)
}

func (c *Client) Interrupt(ctx context.Context, token, sessionID string) error {
	return c.doData(ctx, endpointInterrupt, token, map[string]string{"session_id": sessionID}, nil)
}

// StopStreaming stops a session with the streaming token.
func (c *Client) StopStreaming(ctx context.Context, token, sessionID string) error {
	return c.doData(ctx, endpointStop, token, map[string]string{"session_id": sessionID}, nil)
}

func (c *Client) doData(ctx context.Context, endpoint, token string, body any, out any) error {
	payload, err := c.do(ctx, http.MethodPost, endpoint, bearerAuth(token), body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s response did not contain data", endpoint)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

type authFunc func(h http.Header)

func (c *Client) apiKeyAuth(h http.Header) {
	h.Set("x-api-key", c.apiKey)
}

func bearerAuth(token string) authFunc {
	return func(h http.Header) {
		h.Set("Authorization", "Bearer "+token)
	}
}

// do performs one vendor call and returns the raw JSON body.
func (c *Client) do(ctx context.Context, method, endpoint string, auth authFunc, body any) (json.RawMessage, error) {
	var payload json.RawMessage
	err := telemetry.WithSpan(ctx, "heygen"+strings.ReplaceAll(endpoint, "/", "."), func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("encode %s request: %w", endpoint, err)
			}
			reader = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("build %s request: %w", endpoint, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		auth(req.Header)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("call %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", endpoint, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode}
			var env envelope
			if json.Unmarshal(raw, &env) == nil {
				apiErr.Code = env.Code
				apiErr.Message = strings.TrimSpace(env.Message)
			}
			return apiErr
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%s returned malformed JSON", endpoint)
		}
		payload = raw
		return nil
	}, attribute.String("heygen.endpoint", endpoint), attribute.String("http.method", method))

	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("vendor call failed")
	} else {
		c.logger.Debug().Str("endpoint", endpoint).Msg("vendor call succeeded")
	}
	metrics.VendorCalls.WithLabelValues(endpoint, outcome).Inc()
	return payload, err
}
