package domain

// SessionState models the avatar session lifecycle.
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateStarting SessionState = "starting"
	SessionStateActive   SessionState = "active"
	SessionStateStopping SessionState = "stopping"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonStarting            SessionStateReason = "starting"
	SessionReasonStarted             SessionStateReason = "started"
	SessionReasonStartFailed         SessionStateReason = "start_failed"
	SessionReasonStreamReady         SessionStateReason = "stream_ready"
	SessionReasonStreamDisconnected  SessionStateReason = "stream_disconnected"
	SessionReasonStopping            SessionStateReason = "stopping"
	SessionReasonEnded               SessionStateReason = "ended"
	SessionReasonSpeaking            SessionStateReason = "speaking"
	SessionReasonSpeechCompleted     SessionStateReason = "speech_completed"
	SessionReasonSpeechFailed        SessionStateReason = "speech_failed"
	SessionReasonPlaybackStarted     SessionStateReason = "playback_started"
	SessionReasonListeningChanged    SessionStateReason = "listening_changed"
	SessionReasonStreamErrorReported SessionStateReason = "stream_error"
	SessionReasonStatusChanged       SessionStateReason = "status_changed"
)

// ErrorCode identifies failures surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeToken       ErrorCode = "token"
	ErrorCodeSession     ErrorCode = "session"
	ErrorCodeSpeak       ErrorCode = "speak"
	ErrorCodeStream      ErrorCode = "stream"
	ErrorCodeListening   ErrorCode = "listening"
	ErrorCodeStop        ErrorCode = "stop"
	ErrorCodeValidation  ErrorCode = "validation"
	ErrorCodeVendorProxy ErrorCode = "proxy"
)

// AvatarEventKind is the fixed vocabulary of events emitted by the avatar client.
type AvatarEventKind string

const (
	AvatarEventStartTalking       AvatarEventKind = "avatar_start_talking"
	AvatarEventStopTalking        AvatarEventKind = "avatar_stop_talking"
	AvatarEventStreamDisconnected AvatarEventKind = "stream_disconnected"
	AvatarEventStreamReady        AvatarEventKind = "stream_ready"
	AvatarEventStreamError        AvatarEventKind = "stream_error"
)

// AvatarEvent is one event delivered by the avatar client.
type AvatarEvent struct {
	Kind   AvatarEventKind `json:"kind"`
	Stream *MediaStream    `json:"stream,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// MediaStream is the opaque handle to the live avatar media. The webview joins
// the media room with URL and AccessToken.
type MediaStream struct {
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
	AccessToken string `json:"accessToken"`
}

// AvatarQuality is the vendor rendering tier.
type AvatarQuality string

const (
	AvatarQualityLow    AvatarQuality = "low"
	AvatarQualityMedium AvatarQuality = "medium"
	AvatarQualityHigh   AvatarQuality = "high"
)

// VoiceEmotion tunes the avatar voice.
type VoiceEmotion string

const (
	VoiceEmotionExcited     VoiceEmotion = "excited"
	VoiceEmotionSerious     VoiceEmotion = "serious"
	VoiceEmotionFriendly    VoiceEmotion = "friendly"
	VoiceEmotionSoothing    VoiceEmotion = "soothing"
	VoiceEmotionBroadcaster VoiceEmotion = "broadcaster"
)

// TaskType selects how the avatar treats submitted text.
type TaskType string

const (
	TaskTypeTalk   TaskType = "talk"
	TaskTypeRepeat TaskType = "repeat"
)

// TaskMode selects whether a speak call waits for the avatar to finish.
type TaskMode string

const (
	TaskModeSync  TaskMode = "sync"
	TaskModeAsync TaskMode = "async"
)

// VoiceSettings configures the avatar voice.
type VoiceSettings struct {
	VoiceID string       `json:"voice_id,omitempty"`
	Rate    float64      `json:"rate,omitempty"`
	Emotion VoiceEmotion `json:"emotion,omitempty"`
}

// StartOptions are the fixed parameters of a new avatar session.
type StartOptions struct {
	Quality            AvatarQuality
	AvatarName         string
	KnowledgeID        string
	Voice              VoiceSettings
	Language           string
	DisableIdleTimeout bool
}

// SpeakRequest is a single utterance handed to the avatar.
type SpeakRequest struct {
	Text     string
	TaskType TaskType
	TaskMode TaskMode
}

// VendorSession is one entry of the vendor's session registry.
type VendorSession struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// Status is the observable view state of the session controller.
type Status struct {
	State             SessionState `json:"state"`
	Active            bool         `json:"active"`
	SessionLoading    bool         `json:"sessionLoading"`
	SpeakLoading      bool         `json:"speakLoading"`
	Stream            *MediaStream `json:"stream,omitempty"`
	StatusText        string       `json:"statusText,omitempty"`
	HasStartedPlaying bool         `json:"hasStartedPlaying"`
	CurrentText       string       `json:"currentText"`
	Listening         bool         `json:"listening"`
}
