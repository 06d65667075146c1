package status

import (
	"testing"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/websocket"
)

func TestWebSocketSinkBroadcastsWithoutPanicking(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	sink := NewWebSocketSink(hub)
	sink.Publish(Snapshot{
		Time:             time.Now(),
		GlobalMinSpareMs: 5,
		Sites: []SiteSnapshot{
			{Name: "alpha", FPSTarget: 30, FPSActual: 29.8, SpareMs: 5, CurrentEffect: "rainbow"},
		},
	})
}
