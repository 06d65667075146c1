// Package registry holds the process-wide, immutable list of Sites and
// starts them at boot.
package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/site"
)

// Registry is the process-wide list of Sites, built once at startup and
// never mutated afterward.
type Registry struct {
	sites []*site.Site
	log   *zap.SugaredLogger
}

// New builds a Registry over sites, in the order they should be started.
func New(sites []*site.Site, log *zap.SugaredLogger) *Registry {
	return &Registry{sites: sites, log: log}
}

// Sites exposes the immutable site list for status reporting.
func (r *Registry) Sites() []*site.Site { return r.sites }

// Start spawns every Site's render thread and every strip's send worker.
// There is no corresponding Stop: process lifetime equals service
// lifetime, and ctx cancellation is what actually tears workers down.
func (r *Registry) Start(ctx context.Context) {
	for _, s := range r.sites {
		r.log.Infow("starting site", "site", s.Name, "pixel_count", s.PixelCount(), "target_fps", s.TargetFPS)
		s.Start(ctx)
	}
}

// GlobalMinSpareMs returns the minimum SpareMs across all sites, or 0 if
// there are no sites. Used for a single process-wide health signal.
func (r *Registry) GlobalMinSpareMs() int64 {
	if len(r.sites) == 0 {
		return 0
	}
	min := r.sites[0].SpareMs()
	for _, s := range r.sites[1:] {
		if v := s.SpareMs(); v < min {
			min = v
		}
	}
	return min
}
