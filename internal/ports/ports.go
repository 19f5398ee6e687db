package ports

import (
	"context"

	"avatarchat/internal/domain"
)

// TokenSource issues short-lived streaming tokens.
type TokenSource interface {
	IssueToken(ctx context.Context) (string, error)
}

// AvatarClient is a live connection to the vendor streaming service.
type AvatarClient interface {
	// Events delivers the five avatar event kinds. It is closed once the
	// client is closed.
	Events() <-chan domain.AvatarEvent
	CreateStartAvatar(ctx context.Context, opts domain.StartOptions) error
	Speak(ctx context.Context, req domain.SpeakRequest) error
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
	Interrupt(ctx context.Context) error
	StopAvatar(ctx context.Context) error
	Close() error
}

// AvatarClientFactory constructs avatar clients from a streaming token.
type AvatarClientFactory interface {
	NewClient(token string) (AvatarClient, error)
}

// EventSink emits controller state and events to the UI.
type EventSink interface {
	SessionStateChanged(status domain.Status, reason domain.SessionStateReason)
	StreamChanged(stream *domain.MediaStream)
	AvatarTalking(talking bool)
	SessionError(code domain.ErrorCode, detail string)
}
