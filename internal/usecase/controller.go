package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"avatarchat/internal/domain"
	"avatarchat/internal/metrics"
	"avatarchat/internal/ports"
	"avatarchat/internal/presentation"
)

var (
	ErrSessionBusy      = errors.New("avatar session already in progress")
	ErrTokenUnavailable = errors.New("access token unavailable")
	ErrNoActiveSession  = errors.New("no active avatar session")
	ErrEmptyUtterance   = errors.New("utterance is empty")
	ErrSessionAbandoned = errors.New("avatar session ended before it became active")
)

const (
	StatusStarting        = "Starting session..."
	StatusSpeechCompleted = "Speech completed"
	statusStreamError     = "Stream error: "
)

// SessionController owns the avatar client and derives view state from user
// operations and avatar events. At most one session exists at a time.
type SessionController struct {
	tokens  ports.TokenSource
	avatars ports.AvatarClientFactory
	events  ports.EventSink
	surface *presentation.Surface
	opts    domain.StartOptions
	logger  zerolog.Logger

	// listenMu orders listening toggles. It is taken before mu.
	listenMu sync.Mutex

	mu             sync.Mutex
	state          domain.SessionState
	current        *activeSession
	sessionLoading bool
	speakLoading   bool
	stream         *domain.MediaStream
	statusText     string
	text           string
	listening      bool
}

func NewSessionController(
	tokens ports.TokenSource,
	avatars ports.AvatarClientFactory,
	events ports.EventSink,
	surface *presentation.Surface,
	opts domain.StartOptions,
	logger zerolog.Logger,
) *SessionController {
	if surface == nil {
		surface = presentation.NewSurface()
	}
	return &SessionController{
		tokens:  tokens,
		avatars: avatars,
		events:  events,
		surface: surface,
		opts:    opts,
		logger:  logger.With().Str("component", "session").Logger(),
		state:   domain.SessionStateIdle,
	}
}

// StartSession acquires a token, builds the avatar client and starts the
// avatar. It fails fast with ErrSessionBusy unless the controller is idle.
func (c *SessionController) StartSession(ctx context.Context) error {
	startCtx, cancel := context.WithCancel(ctx)
	active := &activeSession{
		id:         uuid.NewString(),
		cancel:     cancel,
		eventsDone: make(chan struct{}),
	}
	active.logger = c.logger.With().Str("session_id", active.id).Logger()

	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		state := c.state
		c.mu.Unlock()
		cancel()
		c.logger.Warn().Str("state", string(state)).Msg("start rejected, session already in progress")
		return ErrSessionBusy
	}
	c.state = domain.SessionStateStarting
	c.current = active
	c.sessionLoading = true
	c.statusText = StatusStarting
	c.mu.Unlock()

	active.logger.Info().Msg("starting avatar session")
	c.publish(domain.SessionReasonStarting)

	err := c.start(startCtx, active)
	if err == nil {
		err = c.activate(ctx, active)
	}
	cancel()

	if err != nil {
		if active.client != nil {
			_ = active.client.Close()
		}
		c.mu.Lock()
		if c.current == active {
			c.current = nil
			c.stream = nil
			c.surface.Reset()
		}
		c.state = domain.SessionStateIdle
		c.sessionLoading = false
		c.statusText = err.Error()
		c.mu.Unlock()

		code := domain.ErrorCodeSession
		if errors.Is(err, ErrTokenUnavailable) {
			code = domain.ErrorCodeToken
		}
		active.logger.Error().Err(err).Msg("avatar session failed to start")
		c.events.StreamChanged(nil)
		c.events.SessionError(code, err.Error())
		c.publish(domain.SessionReasonStartFailed)
		return err
	}

	active.logger.Info().Msg("avatar session started")
	c.publish(domain.SessionReasonStarted)
	return nil
}

// activate moves a started session to Active unless it was abandoned while
// starting. abandon is only called under mu.
func (c *SessionController) activate(ctx context.Context, active *activeSession) error {
	c.mu.Lock()
	cause, abandoned := active.abandonedWith()
	if !abandoned {
		c.state = domain.SessionStateActive
		c.sessionLoading = false
		metrics.ActiveSessions.Inc()
	}
	c.mu.Unlock()
	if !abandoned {
		return nil
	}

	active.logger.Info().Str("cause", cause).Msg("session abandoned during startup")
	if err := active.client.StopAvatar(context.WithoutCancel(ctx)); err != nil {
		active.logger.Warn().Err(err).Msg("failed to stop abandoned session")
	}
	return fmt.Errorf("%w: %s", ErrSessionAbandoned, cause)
}

func (c *SessionController) start(ctx context.Context, active *activeSession) error {
	token, err := c.tokens.IssueToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: empty token", ErrTokenUnavailable)
	}

	client, err := c.avatars.NewClient(token)
	if err != nil {
		return fmt.Errorf("create avatar client: %w", err)
	}
	active.client = client
	go c.consumeAvatarEvents(active)

	if err := client.CreateStartAvatar(ctx, c.opts); err != nil {
		return fmt.Errorf("start avatar: %w", err)
	}
	return nil
}

// SubmitUtterance asks the avatar to speak text. Blank text and a missing
// session are rejected with a warning and leave the field untouched.
func (c *SessionController) SubmitUtterance(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		c.logger.Warn().Msg("ignoring empty utterance")
		metrics.Utterances.WithLabelValues("rejected").Inc()
		return ErrEmptyUtterance
	}

	c.mu.Lock()
	active := c.current
	if active == nil || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		c.logger.Warn().Msg("ignoring utterance, no active session")
		metrics.Utterances.WithLabelValues("rejected").Inc()
		return ErrNoActiveSession
	}
	c.speakLoading = true
	c.mu.Unlock()
	c.publish(domain.SessionReasonSpeaking)

	err := active.client.Speak(ctx, domain.SpeakRequest{
		Text:     text,
		TaskType: domain.TaskTypeTalk,
		TaskMode: domain.TaskModeSync,
	})

	c.mu.Lock()
	c.speakLoading = false
	if err != nil {
		c.statusText = err.Error()
	} else {
		c.statusText = StatusSpeechCompleted
	}
	c.mu.Unlock()

	if err != nil {
		active.logger.Error().Err(err).Msg("speak failed")
		metrics.Utterances.WithLabelValues("failed").Inc()
		c.events.SessionError(domain.ErrorCodeSpeak, err.Error())
		c.publish(domain.SessionReasonSpeechFailed)
		return err
	}

	active.logger.Debug().Int("chars", len(text)).Msg("speech completed")
	metrics.Utterances.WithLabelValues("spoken").Inc()
	c.SetText(ctx, "")
	c.publish(domain.SessionReasonSpeechCompleted)
	return nil
}

// SubmitCurrent submits the current field text.
func (c *SessionController) SubmitCurrent(ctx context.Context) error {
	return c.SubmitUtterance(ctx, c.Text())
}

// SetText updates the controlled field. An empty to non-empty change starts
// listening and the reverse stops it. Toggles reach the vendor in the order
// the text changed.
func (c *SessionController) SetText(ctx context.Context, text string) {
	c.listenMu.Lock()
	defer c.listenMu.Unlock()

	c.mu.Lock()
	previous := c.text
	c.text = text
	var client ports.AvatarClient
	if c.current != nil && c.state == domain.SessionStateActive {
		client = c.current.client
	}
	c.mu.Unlock()

	switch {
	case previous == "" && text != "":
		c.toggleListening(ctx, client, true)
	case previous != "" && text == "":
		c.toggleListening(ctx, client, false)
	}
}

// toggleListening must be called with listenMu held.
func (c *SessionController) toggleListening(ctx context.Context, client ports.AvatarClient, on bool) {
	if client == nil {
		return
	}

	var err error
	if on {
		err = client.StartListening(ctx)
	} else {
		err = client.StopListening(ctx)
	}
	if err != nil {
		c.logger.Error().Err(err).Bool("listening", on).Msg("failed to toggle listening")
		c.events.SessionError(domain.ErrorCodeListening, err.Error())
		return
	}

	c.mu.Lock()
	c.listening = on
	c.mu.Unlock()
	c.publish(domain.SessionReasonListeningChanged)
}

// Interrupt cuts off the avatar's current speech.
func (c *SessionController) Interrupt(ctx context.Context) error {
	c.mu.Lock()
	active := c.current
	if active == nil || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.mu.Unlock()

	if err := active.client.Interrupt(ctx); err != nil {
		active.logger.Error().Err(err).Msg("interrupt failed")
		c.events.SessionError(domain.ErrorCodeSpeak, err.Error())
		return err
	}
	return nil
}

// EndSession stops the avatar and returns to idle. Without a session it
// does nothing. A session that is still starting is abandoned and torn down
// once its start call returns.
func (c *SessionController) EndSession(ctx context.Context) error {
	c.mu.Lock()
	active := c.current
	starting := active != nil && c.state == domain.SessionStateStarting
	if starting {
		active.abandon("session ended by caller")
	}
	c.mu.Unlock()

	if active == nil {
		return nil
	}
	if starting {
		active.cancel()
		return nil
	}
	return c.endSession(ctx, active, domain.SessionReasonEnded)
}

func (c *SessionController) endSession(ctx context.Context, active *activeSession, reason domain.SessionStateReason) error {
	c.mu.Lock()
	if c.current != active || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.SessionStateStopping
	c.mu.Unlock()
	c.publish(domain.SessionReasonStopping)

	stopErr := active.client.StopAvatar(ctx)
	_ = active.client.Close()

	c.mu.Lock()
	c.current = nil
	c.stream = nil
	c.state = domain.SessionStateIdle
	c.sessionLoading = false
	c.speakLoading = false
	c.listening = false
	c.surface.Reset()
	c.mu.Unlock()

	metrics.ActiveSessions.Dec()
	c.events.StreamChanged(nil)
	if stopErr != nil {
		active.logger.Error().Err(stopErr).Msg("failed to stop avatar cleanly")
		c.events.SessionError(domain.ErrorCodeStop, stopErr.Error())
	}
	active.logger.Info().Str("reason", string(reason)).Msg("avatar session ended")
	c.publish(reason)
	return stopErr
}

// Close tears the session down on shutdown without waiting for in-flight
// calls.
func (c *SessionController) Close(ctx context.Context) error {
	return c.EndSession(ctx)
}

// AttachElement reports that the playback element is mounted.
func (c *SessionController) AttachElement() {
	c.surface.AttachElement()
}

// MetadataLoaded reports that the bound stream's metadata is available.
func (c *SessionController) MetadataLoaded() {
	status, ok := c.surface.MetadataLoaded()
	if !ok {
		return
	}
	c.setStatus(status)
}

// Play handles a gesture on the playback surface. It reports whether
// playback started.
func (c *SessionController) Play(g presentation.Gesture) bool {
	c.mu.Lock()
	loading := c.sessionLoading
	c.mu.Unlock()

	status, ok := c.surface.Gesture(g, loading)
	if !ok {
		return false
	}
	c.mu.Lock()
	c.statusText = status
	c.mu.Unlock()
	c.publish(domain.SessionReasonPlaybackStarted)
	return true
}

func (c *SessionController) Surface() presentation.State {
	return c.surface.State()
}

func (c *SessionController) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *SessionController) SpeakLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakLoading
}

// Status returns a snapshot of the view state.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *SessionController) statusLocked() domain.Status {
	return domain.Status{
		State:             c.state,
		Active:            c.state != domain.SessionStateIdle,
		SessionLoading:    c.sessionLoading,
		SpeakLoading:      c.speakLoading,
		Stream:            c.stream,
		StatusText:        c.statusText,
		HasStartedPlaying: c.surface.Playing(),
		CurrentText:       c.text,
		Listening:         c.listening,
	}
}

func (c *SessionController) setStatus(text string) {
	c.mu.Lock()
	c.statusText = text
	c.mu.Unlock()
	c.publish(domain.SessionReasonStatusChanged)
}

func (c *SessionController) publish(reason domain.SessionStateReason) {
	c.mu.Lock()
	status := c.statusLocked()
	c.mu.Unlock()

	metrics.SessionTransitions.WithLabelValues(string(status.State), string(reason)).Inc()
	c.events.SessionStateChanged(status, reason)
}
