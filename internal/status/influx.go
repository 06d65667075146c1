package status

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// InfluxSink writes one point per site per tick to a time-series bucket,
// using the non-blocking write API so a slow or unreachable InfluxDB
// instance never backs up the status ticker.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *zap.SugaredLogger
}

// InfluxConfig configures the target bucket for site metrics.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewInfluxSink opens a client and its async write API for cfg.
func NewInfluxSink(cfg InfluxConfig, log *zap.SugaredLogger) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writeAPI.Errors() {
			log.Warnw("status: influxdb write error", "error", err)
		}
	}()

	return &InfluxSink{client: client, writeAPI: writeAPI, log: log}
}

func (s *InfluxSink) Publish(snap Snapshot) {
	for _, site := range snap.Sites {
		connected := 0
		drops := uint64(0)
		for _, strip := range site.Strips {
			if strip.Connected {
				connected++
			}
			drops += strip.DropsTotal
		}

		p := influxdb2.NewPoint(
			"nightdriver_site",
			map[string]string{"site": site.Name, "effect": site.CurrentEffect},
			map[string]interface{}{
				"fps_target":       site.FPSTarget,
				"fps_actual":       site.FPSActual,
				"spare_ms":         site.SpareMs,
				"strips_connected": connected,
				"strips_total":     len(site.Strips),
				"drops_total":      drops,
				"global_min_spare": snap.GlobalMinSpareMs,
			},
			snap.Time,
		)
		s.writeAPI.WritePoint(p)
	}
}

// Close flushes pending points and releases the client. Bounded so
// shutdown never hangs indefinitely on a stalled connection.
func (s *InfluxSink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.writeAPI.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.client.Close()
}
