package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"avatarchat/internal/bootstrap"
	"avatarchat/internal/domain"
	"avatarchat/internal/presentation"
	"avatarchat/internal/usecase"
	"avatarchat/internal/widget"
)

const (
	eventSession = "avatarchat:session"
	eventStream  = "avatarchat:stream"
	eventTalking = "avatarchat:talking"
	eventError   = "avatarchat:error"
)

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	services *bootstrap.Services
	bootErr  error

	commands chan widget.Command
	emit     func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{
		commands: make(chan widget.Command),
		emit:     runtime.EventsEmit,
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)

	services, err := bootstrap.Build(a)
	if err != nil {
		a.setBootErr(err)
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	services.Input.SetDisabled(true)
	a.mu.Lock()
	a.services = &services
	a.mu.Unlock()

	go services.Input.Serve(a.ctx, a.commands)
	go func() {
		if err := services.Proxy.ListenAndServe(a.ctx, services.Config.Proxy.ListenAddr); err != nil {
			services.Logger.Error().Err(err).Str("addr", services.Config.Proxy.ListenAddr).Msg("credential proxy stopped")
			a.SessionError(domain.ErrorCodeVendorProxy, err.Error())
		}
	}()

	a.SessionStateChanged(services.Controller.Status(), domain.SessionReasonReady)
}

func (a *App) shutdown(ctx context.Context) {
	services := a.current()
	if services != nil {
		if err := services.Controller.Close(ctx); err != nil {
			services.Logger.Warn().Err(err).Msg("session teardown failed")
		}
		if err := services.Shutdown(ctx); err != nil {
			services.Logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
}

// StartSession starts a new avatar session.
func (a *App) StartSession() (domain.Status, error) {
	services, err := a.requireReady()
	if err != nil {
		return domain.Status{}, err
	}
	if err := services.Controller.StartSession(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrSessionBusy) {
			a.SessionError(domain.ErrorCodeValidation, err.Error())
		}
		return services.Controller.Status(), err
	}
	return services.Controller.Status(), nil
}

// EndSession stops the current avatar session, if any.
func (a *App) EndSession() error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return services.Controller.EndSession(a.ctx)
}

// SetText mirrors the text field's value.
func (a *App) SetText(text string) {
	services, err := a.requireReady()
	if err != nil {
		return
	}
	services.Input.SetValue(a.ctx, text)
}

// SubmitClick handles the submit button.
func (a *App) SubmitClick() error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return quietValidation(services.Input.Click(a.ctx))
}

// KeyDown handles a key press in the text field.
func (a *App) KeyDown(key string) error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return quietValidation(services.Input.KeyDown(a.ctx, key))
}

// SubmitText lets a host outside the UI tree inject text and submit it.
func (a *App) SubmitText(text string) error {
	if _, err := a.requireReady(); err != nil {
		return err
	}
	done := make(chan error, 1)
	select {
	case a.commands <- widget.Command{Text: text, Done: done}:
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
	select {
	case err := <-done:
		return quietValidation(err)
	case <-a.ctx.Done():
		return a.ctx.Err()
	}
}

// Interrupt cuts off the avatar's current speech.
func (a *App) Interrupt() error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return services.Controller.Interrupt(a.ctx)
}

// ElementReady reports that the video element is mounted.
func (a *App) ElementReady() {
	if services, err := a.requireReady(); err == nil {
		services.Controller.AttachElement()
	}
}

// MetadataLoaded reports the video element's loadedmetadata event.
func (a *App) MetadataLoaded() {
	if services, err := a.requireReady(); err == nil {
		services.Controller.MetadataLoaded()
	}
}

// PlayVideo handles a click or key gesture on the video surface and reports
// whether the frontend should start playback.
func (a *App) PlayVideo(kind string, key string) bool {
	services, err := a.requireReady()
	if err != nil {
		return false
	}
	return services.Controller.Play(presentation.Gesture{Kind: kind, Key: key})
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	services := a.current()
	if services == nil {
		status := domain.Status{State: domain.SessionStateIdle}
		if err := a.getBootErr(); err != nil {
			status.StatusText = err.Error()
		}
		return status
	}
	return services.Controller.Status()
}

// InputState is the text field's presentation.
type InputState struct {
	Value      string            `json:"value"`
	Disabled   bool              `json:"disabled"`
	Affordance widget.Affordance `json:"affordance"`
}

func (a *App) GetInputState() InputState {
	services := a.current()
	if services == nil {
		return InputState{Disabled: true, Affordance: widget.AffordanceButton}
	}
	return InputState{
		Value:      services.Input.Value(),
		Disabled:   services.Input.Disabled(),
		Affordance: services.Input.Affordance(),
	}
}

func (a *App) GetSurface() presentation.State {
	services := a.current()
	if services == nil {
		return presentation.State{}
	}
	return services.Controller.Surface()
}

// ListSessions returns the vendor's live sessions through the proxy.
func (a *App) ListSessions() ([]domain.VendorSession, error) {
	services, err := a.requireReady()
	if err != nil {
		return nil, err
	}
	return services.ProxyClient.ListSessions(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if err := a.getBootErr(); err != nil {
		return map[string]string{"error": err.Error()}
	}
	services := a.current()
	if services == nil {
		return map[string]string{}
	}

	cfg := services.Config
	return map[string]string{
		"provider":  "HeyGen",
		"avatar":    cfg.Avatar.AvatarID,
		"knowledge": cfg.Avatar.KnowledgeID,
		"language":  cfg.Avatar.Language,
		"quality":   cfg.Avatar.Quality,
		"emotion":   cfg.Avatar.VoiceEmotion,
		"proxy":     cfg.Proxy.BaseURL,
		"apiKeySet": fmt.Sprintf("%t", cfg.HeyGen.APIKey != ""),
	}
}

func (a *App) requireReady() (*bootstrap.Services, error) {
	if err := a.getBootErr(); err != nil {
		return nil, err
	}
	services := a.current()
	if services == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return services, nil
}

func (a *App) current() *bootstrap.Services {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.services
}

func (a *App) setBootErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bootErr = err
}

func (a *App) getBootErr() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bootErr
}

// quietValidation drops input rejections the widget already logged.
func quietValidation(err error) error {
	switch {
	case errors.Is(err, widget.ErrBlank),
		errors.Is(err, widget.ErrDisabled),
		errors.Is(err, widget.ErrLoading),
		errors.Is(err, usecase.ErrEmptyUtterance),
		errors.Is(err, usecase.ErrNoActiveSession):
		return nil
	}
	return err
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(status domain.Status, reason domain.SessionStateReason) {
	if services := a.current(); services != nil {
		services.Input.SetDisabled(status.State != domain.SessionStateActive)
	}
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventSession, map[string]interface{}{
		"status":  status,
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// StreamChanged emits the media descriptor, or nil once the session ends.
func (a *App) StreamChanged(stream *domain.MediaStream) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventStream, stream)
}

// AvatarTalking emits talking start/stop for the debug panel.
func (a *App) AvatarTalking(talking bool) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventTalking, map[string]bool{"talking": talking})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonStarting:
		return usecase.StatusStarting
	case domain.SessionReasonStarted:
		return "Session started"
	case domain.SessionReasonStartFailed:
		return "Session failed to start"
	case domain.SessionReasonStreamReady:
		return "Stream connected"
	case domain.SessionReasonStreamDisconnected:
		return "Stream disconnected"
	case domain.SessionReasonStopping:
		return "Ending session..."
	case domain.SessionReasonEnded:
		return "Session ended"
	case domain.SessionReasonSpeaking:
		return "Speaking..."
	case domain.SessionReasonSpeechCompleted:
		return usecase.StatusSpeechCompleted
	case domain.SessionReasonSpeechFailed:
		return "Speech failed"
	case domain.SessionReasonPlaybackStarted:
		return presentation.StatusPlaying
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeToken:
		return "Could not get an access token"
	case domain.ErrorCodeSession:
		return "Avatar session error"
	case domain.ErrorCodeSpeak:
		return "Avatar could not speak"
	case domain.ErrorCodeStream:
		return "Stream error"
	case domain.ErrorCodeListening:
		return "Voice listening issue"
	case domain.ErrorCodeStop:
		return "Session stop issue"
	case domain.ErrorCodeVendorProxy:
		return "Credential proxy unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// proxyAssets serves the credential proxy routes to the webview through the
// Wails asset server.
type proxyAssets struct {
	app *App
}

func (h proxyAssets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	services := h.app.current()
	if services == nil {
		http.Error(w, "application is not initialized", http.StatusServiceUnavailable)
		return
	}
	services.Proxy.Handler().ServeHTTP(w, r)
}
