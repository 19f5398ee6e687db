package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"avatarchat/internal/domain"
	"avatarchat/internal/presentation"
	"avatarchat/internal/usecase"
	"avatarchat/internal/widget"
)

type emitted struct {
	name string
	data interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingEmitter) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}
	r.events = append(r.events, emitted{name: name, data: payload})
}

func (r *recordingEmitter) snapshot() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitted(nil), r.events...)
}

func newTestApp() (*App, *recordingEmitter) {
	rec := &recordingEmitter{}
	app := NewApp()
	app.ctx = context.Background()
	app.emit = rec.emit
	return app, rec
}

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonStarting:           "Starting session...",
		domain.SessionReasonStarted:            "Session started",
		domain.SessionReasonStartFailed:        "Session failed to start",
		domain.SessionReasonStreamReady:        "Stream connected",
		domain.SessionReasonStreamDisconnected: "Stream disconnected",
		domain.SessionReasonEnded:              "Session ended",
		domain.SessionReasonSpeechCompleted:    "Speech completed",
		domain.SessionReasonPlaybackStarted:    "Playing",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:     "Startup failed",
		domain.ErrorCodeToken:       "Could not get an access token",
		domain.ErrorCodeSpeak:       "Avatar could not speak",
		domain.ErrorCodeStream:      "Stream error",
		domain.ErrorCodeStop:        "Session stop issue",
		domain.ErrorCodeVendorProxy: "Credential proxy unavailable",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := NewApp()
	if _, err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.setBootErr(bootErr)
	if _, err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.setBootErr(errors.New("config: bad LOG_LEVEL"))
	if got := app.GetStatus().StatusText; got != "config: bad LOG_LEVEL" {
		t.Fatalf("expected boot error in status text, got %q", got)
	}
	if got := app.GetRuntimeInfo()["error"]; got != "config: bad LOG_LEVEL" {
		t.Fatalf("expected boot error in runtime info, got %q", got)
	}
}

func TestUninitializedBindingsAreInert(t *testing.T) {
	t.Parallel()

	app, rec := newTestApp()
	if app.PlayVideo("click", "") {
		t.Fatalf("expected no playback before startup")
	}
	app.SetText("hello")
	app.ElementReady()
	app.MetadataLoaded()
	if err := app.SubmitClick(); err == nil {
		t.Fatalf("expected submit to fail before startup")
	}
	if err := app.SubmitText("hello"); err == nil {
		t.Fatalf("expected injected submit to fail before startup")
	}
	if input := app.GetInputState(); !input.Disabled {
		t.Fatalf("expected disabled input before startup: %+v", input)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no events, got %+v", got)
	}
}

func TestEventSinkEmitsFrontendEvents(t *testing.T) {
	t.Parallel()

	app, rec := newTestApp()
	stream := &domain.MediaStream{SessionID: "s1", URL: "wss://room", AccessToken: "t"}

	app.SessionStateChanged(domain.Status{State: domain.SessionStateActive}, domain.SessionReasonStarted)
	app.StreamChanged(stream)
	app.AvatarTalking(true)
	app.SessionError(domain.ErrorCodeSpeak, "task failed")

	events := rec.snapshot()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	wantNames := []string{eventSession, eventStream, eventTalking, eventError}
	for i, name := range wantNames {
		if events[i].name != name {
			t.Fatalf("event %d: expected %s, got %s", i, name, events[i].name)
		}
	}

	session := events[0].data.(map[string]interface{})
	if session["reason"] != "started" || session["message"] != "Session started" {
		t.Fatalf("unexpected session payload: %+v", session)
	}
	if events[1].data.(*domain.MediaStream) != stream {
		t.Fatalf("expected stream descriptor to be emitted as is")
	}
	if !events[2].data.(map[string]bool)["talking"] {
		t.Fatalf("expected talking=true")
	}
	errPayload := events[3].data.(map[string]string)
	if errPayload["code"] != "speak" || errPayload["message"] != "Avatar could not speak" || errPayload["detail"] != "task failed" {
		t.Fatalf("unexpected error payload: %+v", errPayload)
	}
}

func TestEventSinkWithoutContextIsSilent(t *testing.T) {
	t.Parallel()

	rec := &recordingEmitter{}
	app := NewApp()
	app.emit = rec.emit

	app.SessionError(domain.ErrorCodeStartup, "boom")
	app.StreamChanged(nil)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no events before startup, got %+v", got)
	}
}

func TestQuietValidation(t *testing.T) {
	t.Parallel()

	for _, err := range []error{
		nil,
		widget.ErrBlank,
		widget.ErrDisabled,
		widget.ErrLoading,
		usecase.ErrEmptyUtterance,
		usecase.ErrNoActiveSession,
	} {
		if got := quietValidation(err); got != nil {
			t.Fatalf("expected %v to be dropped, got %v", err, got)
		}
	}

	speakErr := errors.New("task failed")
	if got := quietValidation(speakErr); !errors.Is(got, speakErr) {
		t.Fatalf("expected vendor error to pass through, got %v", got)
	}
}

func TestProxyAssetsUnavailableBeforeStartup(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	proxyAssets{app: NewApp()}.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/get-access-token", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestFrontendReadsPlaybackPresentation(t *testing.T) {
	t.Parallel()

	script, err := assets.ReadFile("frontend/dist/main.js")
	if err != nil {
		t.Fatalf("read main.js: %v", err)
	}
	page, err := assets.ReadFile("frontend/dist/index.html")
	if err != nil {
		t.Fatalf("read index.html: %v", err)
	}

	view, _ := json.Marshal(presentation.State{OverlayVisible: true, Playing: true, ShowPlayAffordance: true})
	status, _ := json.Marshal(domain.Status{HasStartedPlaying: true})
	for _, field := range []struct {
		payload []byte
		key     string
	}{
		{view, "overlayVisible"},
		{view, "showPlayAffordance"},
		{view, "playing"},
		{status, "hasStartedPlaying"},
	} {
		if !strings.Contains(string(field.payload), `"`+field.key+`":true`) {
			t.Fatalf("expected %s in %s", field.key, field.payload)
		}
		if !strings.Contains(string(script), "."+field.key) {
			t.Fatalf("main.js does not read %s", field.key)
		}
	}
	if !strings.Contains(string(page), `id="bar"`) {
		t.Fatalf("index.html has no playback overlay bar")
	}
}
