// Package api exposes the operator-facing HTTP/WebSocket surface: a
// liveness probe, a point-in-time status snapshot, a streaming status
// feed and a shutdown trigger protected by a JWT or an API key. It never touches the
// render path directly; every handler reads through the registry and
// status packages' already-synchronized accessors.
package api

import (
	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/health"
	"github.com/nightdriverserver/nightdriverserver/internal/registry"
	"github.com/nightdriverserver/nightdriverserver/internal/websocket"
)

// Service holds the dependencies HTTP handlers need.
type Service struct {
	reg     *registry.Registry
	health  *health.HealthChecker
	wsHub   *websocket.Hub
	log     *zap.SugaredLogger
	stopper func()
}

// NewService wires a Service over the running registry, health checker
// and WebSocket hub. stopper is called once by the shutdown handler.
func NewService(reg *registry.Registry, hc *health.HealthChecker, wsHub *websocket.Hub, stopper func(), log *zap.SugaredLogger) *Service {
	return &Service{reg: reg, health: hc, wsHub: wsHub, stopper: stopper, log: log}
}
