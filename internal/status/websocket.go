package status

import "github.com/nightdriverserver/nightdriverserver/internal/websocket"

// WebSocketSink pushes every Snapshot to the operator WebSocket hub, so
// /ws/status streams the same payload the console and remote sinks
// receive, on the same ticker cadence, to every currently connected
// client at once rather than spawning a ticker per connection.
type WebSocketSink struct {
	hub *websocket.Hub
}

// NewWebSocketSink builds a WebSocketSink broadcasting through hub.
func NewWebSocketSink(hub *websocket.Hub) *WebSocketSink {
	return &WebSocketSink{hub: hub}
}

func (w *WebSocketSink) Publish(snap Snapshot) {
	sites := make([]map[string]interface{}, 0, len(snap.Sites))
	for _, s := range snap.Sites {
		sites = append(sites, map[string]interface{}{
			"name":           s.Name,
			"fps_target":     s.FPSTarget,
			"fps_actual":     s.FPSActual,
			"spare_ms":       s.SpareMs,
			"current_effect": s.CurrentEffect,
			"strips":         s.Strips,
		})
	}
	w.hub.Broadcast(websocket.MessageTypeSiteStatus, map[string]interface{}{
		"time":                snap.Time,
		"global_min_spare_ms": snap.GlobalMinSpareMs,
		"sites":               sites,
	})
}
