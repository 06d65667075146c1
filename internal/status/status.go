// Package status collects per-site health snapshots and fans them out to
// whichever sinks are configured: standard output, MQTT, InfluxDB and the
// operator WebSocket hub. Every sink is nil-safe and never blocks the
// caller on I/O failures; publishing is fire-and-forget.
package status

import (
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/registry"
	"github.com/nightdriverserver/nightdriverserver/internal/strip"
)

// StripSnapshot mirrors strip.Stats for the wire/console representation.
type StripSnapshot struct {
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
	QueueDepth int    `json:"queue_depth"`
	DropsTotal uint64 `json:"drops_total"`
}

// SiteSnapshot is a point-in-time health summary for one Site, matching
// the operator status line shape.
type SiteSnapshot struct {
	Name          string          `json:"name"`
	FPSTarget     int             `json:"fps_target"`
	FPSActual     float64         `json:"fps_actual"`
	SpareMs       int64           `json:"spare_ms"`
	CurrentEffect string          `json:"current_effect"`
	Strips        []StripSnapshot `json:"per_strip"`
}

// Snapshot is the full fan-out payload for one tick of the status ticker.
type Snapshot struct {
	Time             time.Time      `json:"time"`
	GlobalMinSpareMs int64          `json:"global_min_spare_ms"`
	Sites            []SiteSnapshot `json:"sites"`
}

// Collect builds a Snapshot from the current state of reg. Safe to call
// from any goroutine; every field read is through the registry/site's
// already-synchronized accessors.
func Collect(reg *registry.Registry) Snapshot {
	sites := reg.Sites()
	snap := Snapshot{
		Time:             time.Now(),
		GlobalMinSpareMs: reg.GlobalMinSpareMs(),
		Sites:            make([]SiteSnapshot, 0, len(sites)),
	}

	for _, s := range sites {
		siteSnap := SiteSnapshot{
			Name:          s.Name,
			FPSTarget:     s.TargetFPS,
			FPSActual:     s.FPSActual(),
			SpareMs:       s.SpareMs(),
			CurrentEffect: s.CurrentEffectName(),
		}
		for _, st := range s.Strips() {
			stats := st.Stats()
			siteSnap.Strips = append(siteSnap.Strips, StripSnapshot{
				Name:       stats.Name,
				Connected:  stats.State == strip.Connected,
				QueueDepth: stats.QueueDepth,
				DropsTotal: stats.DropsTotal,
			})
		}
		snap.Sites = append(snap.Sites, siteSnap)
	}
	return snap
}

// Sink receives each Snapshot produced by the ticker. Implementations must
// not block; slow sinks should buffer or drop internally.
type Sink interface {
	Publish(Snapshot)
}
