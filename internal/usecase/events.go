package usecase

import (
	"context"

	"avatarchat/internal/domain"
)

// consumeAvatarEvents reacts to avatar events until the client closes its
// event channel. Events from a client that is no longer current are dropped.
func (c *SessionController) consumeAvatarEvents(active *activeSession) {
	defer close(active.eventsDone)

	for event := range active.client.Events() {
		if !c.isCurrent(active) {
			active.logger.Debug().Str("kind", string(event.Kind)).Msg("dropping event from stale client")
			continue
		}
		c.handleAvatarEvent(active, event)
	}
}

func (c *SessionController) handleAvatarEvent(active *activeSession, event domain.AvatarEvent) {
	switch event.Kind {
	case domain.AvatarEventStartTalking:
		active.logger.Debug().Msg("avatar started talking")
		c.events.AvatarTalking(true)

	case domain.AvatarEventStopTalking:
		active.logger.Debug().Msg("avatar stopped talking")
		c.events.AvatarTalking(false)

	case domain.AvatarEventStreamReady:
		if event.Stream == nil {
			active.logger.Warn().Msg("stream ready without a stream handle")
			return
		}
		stream := *event.Stream
		c.surface.SetStream(&stream)
		c.mu.Lock()
		c.stream = &stream
		c.mu.Unlock()
		active.logger.Info().Str("vendor_session_id", stream.SessionID).Msg("stream ready")
		c.events.StreamChanged(&stream)
		c.publish(domain.SessionReasonStreamReady)

	case domain.AvatarEventStreamError:
		active.logger.Error().Str("detail", event.Detail).Msg("stream error")
		c.mu.Lock()
		c.statusText = statusStreamError + event.Detail
		c.mu.Unlock()
		c.events.SessionError(domain.ErrorCodeStream, event.Detail)
		c.publish(domain.SessionReasonStreamErrorReported)

	case domain.AvatarEventStreamDisconnected:
		active.logger.Info().Msg("stream disconnected")
		c.mu.Lock()
		starting := c.state == domain.SessionStateStarting
		if starting {
			active.abandon("stream disconnected")
		}
		c.mu.Unlock()
		if starting {
			return
		}
		_ = c.endSession(context.Background(), active, domain.SessionReasonStreamDisconnected)

	default:
		active.logger.Debug().Str("kind", string(event.Kind)).Msg("ignoring unknown avatar event")
	}
}

func (c *SessionController) isCurrent(active *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == active
}
