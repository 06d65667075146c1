package status

import "go.uber.org/zap"

// ConsoleSink logs one structured line per site per tick, the minimal
// operator surface required even with every network sink disabled.
type ConsoleSink struct {
	log *zap.SugaredLogger
}

// NewConsoleSink builds a ConsoleSink writing through log.
func NewConsoleSink(log *zap.SugaredLogger) *ConsoleSink {
	return &ConsoleSink{log: log}
}

func (c *ConsoleSink) Publish(snap Snapshot) {
	for _, s := range snap.Sites {
		c.log.Infow("site status",
			"site", s.Name,
			"fps_target", s.FPSTarget,
			"fps_actual", s.FPSActual,
			"spare_ms", s.SpareMs,
			"current_effect", s.CurrentEffect,
			"per_strip", s.Strips,
		)
	}
}
