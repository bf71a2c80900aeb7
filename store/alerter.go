package store

import (
	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

// Alerter receives the user-visible side effects of a pushed notification:
// a toast alert and an optional sound cue.
type Alerter interface {
	Toast(n types.Notification)
	Sound(t types.NotificationType)
}

// NopAlerter discards all side effects. Useful in tests and embeddings that
// render store state themselves.
type NopAlerter struct{}

func (NopAlerter) Toast(types.Notification)     {}
func (NopAlerter) Sound(types.NotificationType) {}

// LogAlerter surfaces side effects as log lines; the headless agent's default.
type LogAlerter struct {
	log *zap.SugaredLogger
	// SoundCue toggles the audible cue line.
	SoundCue bool
}

// NewLogAlerter creates a LogAlerter.
func NewLogAlerter(soundCue bool) *LogAlerter {
	return &LogAlerter{
		log:      logger.GetLogger().Named("alerts"),
		SoundCue: soundCue,
	}
}

func (a *LogAlerter) Toast(n types.Notification) {
	a.log.Infow("Notification received",
		"type", n.Type,
		"title", n.Title,
		"message", n.Message,
	)
}

func (a *LogAlerter) Sound(t types.NotificationType) {
	if !a.SoundCue {
		return
	}
	a.log.Debugw("Sound cue", "type", t)
}
