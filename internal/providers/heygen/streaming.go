package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"avatarchat/internal/domain"
	"avatarchat/internal/ports"
)

var (
	ErrMissingToken = errors.New("streaming token is empty")
	ErrNoSession    = errors.New("avatar session has not been started")
	ErrClientClosed = errors.New("avatar client is closed")
)

// Provider implements ports.AvatarClientFactory for the vendor streaming API.
type Provider struct {
	rest   *Client
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewProvider(rest *Client, logger zerolog.Logger) *Provider {
	return &Provider{
		rest:   rest,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

func (p *Provider) NewClient(token string) (ports.AvatarClient, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	return &avatarClient{
		rest:   p.rest,
		dialer: p.dialer,
		token:  token,
		logger: p.logger,
		events: make(chan domain.AvatarEvent, 64),
	}, nil
}

type avatarClient struct {
	rest   *Client
	dialer *websocket.Dialer
	token  string
	logger zerolog.Logger

	events chan domain.AvatarEvent
	wg     sync.WaitGroup

	mu        sync.Mutex
	sessionID string
	conn      *websocket.Conn

	emitMu sync.RWMutex
	closed bool

	closeOnce sync.Once
}

func (c *avatarClient) Events() <-chan domain.AvatarEvent {
	return c.events
}

// CreateStartAvatar creates the vendor session, starts its media, reports
// stream readiness and then attaches the realtime event socket when the
// vendor offers one.
func (c *avatarClient) CreateStartAvatar(ctx context.Context, opts domain.StartOptions) error {
	if c.isClosed() {
		return ErrClientClosed
	}

	info, err := c.rest.NewSession(ctx, c.token, opts)
	if err != nil {
		return fmt.Errorf("create avatar session: %w", err)
	}
	if err := c.rest.StartSession(ctx, c.token, info.SessionID); err != nil {
		if stopErr := c.rest.StopStreaming(context.WithoutCancel(ctx), c.token, info.SessionID); stopErr != nil {
			c.logger.Warn().Err(stopErr).Str("session_id", info.SessionID).Msg("failed to stop half-started session")
		}
		return fmt.Errorf("start avatar session: %w", err)
	}

	c.mu.Lock()
	c.sessionID = info.SessionID
	c.mu.Unlock()

	c.emit(domain.AvatarEvent{
		Kind: domain.AvatarEventStreamReady,
		Stream: &domain.MediaStream{
			SessionID:   info.SessionID,
			URL:         info.URL,
			AccessToken: info.AccessToken,
		},
	})

	if endpoint := strings.TrimSpace(info.RealtimeEndpoint); endpoint != "" {
		if err := c.attachEvents(ctx, endpoint); err != nil {
			c.logger.Warn().Err(err).Str("session_id", info.SessionID).Msg("realtime event socket unavailable")
			c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStreamError, Detail: err.Error()})
		}
	}
	return nil
}

func (c *avatarClient) attachEvents(ctx context.Context, endpoint string) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.token)

	conn, _, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)
	return nil
}

func (c *avatarClient) Speak(ctx context.Context, req domain.SpeakRequest) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	if req.TaskType == "" {
		req.TaskType = domain.TaskTypeTalk
	}
	if req.TaskMode == "" {
		req.TaskMode = domain.TaskModeSync
	}
	if _, err := c.rest.SendTask(ctx, c.token, sessionID, req); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

func (c *avatarClient) StartListening(ctx context.Context) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	return c.rest.StartListening(ctx, c.token, sessionID)
}

func (c *avatarClient) StopListening(ctx context.Context) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	return c.rest.StopListening(ctx, c.token, sessionID)
}

func (c *avatarClient) Interrupt(ctx context.Context) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	return c.rest.Interrupt(ctx, c.token, sessionID)
}

// StopAvatar stops the vendor session and detaches the event socket. It does
// not report a disconnect; the caller initiated it.
func (c *avatarClient) StopAvatar(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	c.emitMu.Lock()
	c.closed = true
	c.emitMu.Unlock()
	c.detach()

	if sessionID == "" {
		return nil
	}
	if err := c.rest.StopStreaming(ctx, c.token, sessionID); err != nil {
		return fmt.Errorf("stop avatar session: %w", err)
	}
	return nil
}

func (c *avatarClient) Close() error {
	c.closeOnce.Do(func() {
		c.emitMu.Lock()
		c.closed = true
		c.emitMu.Unlock()

		c.detach()
		c.wg.Wait()
		close(c.events)
	})
	return nil
}

func (c *avatarClient) detach() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *avatarClient) session() (string, error) {
	if c.isClosed() {
		return "", ErrClientClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", ErrNoSession
	}
	return c.sessionID, nil
}

func (c *avatarClient) isClosed() bool {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	return c.closed
}

func (c *avatarClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStreamError, Detail: err.Error()})
			}
			c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStreamDisconnected})
			return
		}

		var message realtimeMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Type)) {
		case string(domain.AvatarEventStartTalking):
			c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStartTalking})
		case string(domain.AvatarEventStopTalking):
			c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStopTalking})
		case "error":
			detail := strings.TrimSpace(message.Message)
			if detail == "" {
				detail = "vendor returned an unknown error"
			}
			c.emit(domain.AvatarEvent{Kind: domain.AvatarEventStreamError, Detail: detail})
		}
	}
}

func (c *avatarClient) emit(event domain.AvatarEvent) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn().Str("kind", string(event.Kind)).Msg("avatar event dropped")
	}
}

type realtimeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
