// Package presentation models the video surface that shows the avatar stream.
//
// Browsers refuse to autoplay media with sound, so the surface binds the
// stream as soon as both the stream and the playback element exist but only
// starts playback after an explicit user gesture.
package presentation

import (
	"strings"
	"sync"

	"avatarchat/internal/domain"
)

const (
	StatusStreamReady = "Stream ready, click to play"
	StatusPlaying     = "Playing"
)

// Gesture is a user input on the playback surface.
type Gesture struct {
	// Kind is "click" or "keydown".
	Kind string
	// Key is the DOM key value for keydown gestures.
	Key string
}

func Click() Gesture { return Gesture{Kind: "click"} }

func Key(key string) Gesture { return Gesture{Kind: "keydown", Key: key} }

// StartsPlayback reports whether the gesture may start playback: any click,
// or the Enter or Space key.
func (g Gesture) StartsPlayback() bool {
	switch strings.ToLower(g.Kind) {
	case "click":
		return true
	case "keydown":
		switch g.Key {
		case "Enter", " ", "Space", "Spacebar":
			return true
		}
	}
	return false
}

// State is a snapshot of the surface.
type State struct {
	Bound              *domain.MediaStream `json:"bound,omitempty"`
	MetadataLoaded     bool                `json:"metadataLoaded"`
	Playing            bool                `json:"playing"`
	OverlayVisible     bool                `json:"overlayVisible"`
	ShowPlayAffordance bool                `json:"showPlayAffordance"`
}

// Surface is safe for concurrent use.
type Surface struct {
	mu sync.Mutex

	stream         *domain.MediaStream
	elementReady   bool
	bound          *domain.MediaStream
	metadataLoaded bool
	playing        bool
	// affordanceHidden stays set until Reset once playback has started.
	affordanceHidden bool
}

func NewSurface() *Surface {
	return &Surface{}
}

// SetStream records the stream handle and binds it if the element is ready.
// It reports whether a new binding happened.
func (s *Surface) SetStream(stream *domain.MediaStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
	return s.bindLocked()
}

// AttachElement marks the playback element as mounted and binds a pending
// stream. It reports whether a new binding happened.
func (s *Surface) AttachElement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elementReady = true
	return s.bindLocked()
}

func (s *Surface) bindLocked() bool {
	if !s.elementReady || s.stream == nil {
		return false
	}
	if s.bound != nil && *s.bound == *s.stream {
		return false
	}
	s.bound = s.stream
	s.metadataLoaded = false
	return true
}

// MetadataLoaded handles the element's loadedmetadata callback. It returns
// the status text to show, or false when nothing is bound.
func (s *Surface) MetadataLoaded() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return "", false
	}
	s.metadataLoaded = true
	if s.playing {
		return "", false
	}
	return StatusStreamReady, true
}

// Gesture starts playback for a qualifying gesture. Gestures are ignored
// while the session is loading, when nothing is bound, or once playing.
func (s *Surface) Gesture(g Gesture, loading bool) (string, bool) {
	if loading || !g.StartsPlayback() {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil || s.playing {
		return "", false
	}
	s.playing = true
	s.affordanceHidden = true
	return StatusPlaying, true
}

// Playing reports whether playback has started for the current session.
func (s *Surface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Bound:              s.bound,
		MetadataLoaded:     s.metadataLoaded,
		Playing:            s.playing,
		OverlayVisible:     s.playing,
		ShowPlayAffordance: s.bound != nil && !s.affordanceHidden,
	}
}

// Reset drops the stream and playback state. The element stays mounted.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = nil
	s.bound = nil
	s.metadataLoaded = false
	s.playing = false
	s.affordanceHidden = false
}
