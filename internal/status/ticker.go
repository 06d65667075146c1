package status

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nightdriverserver/nightdriverserver/internal/registry"
)

// Ticker periodically collects a Snapshot from a Registry and fans it out
// to every configured Sink, driven by a cron schedule rather than a bare
// time.Ticker so the same interval syntax used elsewhere in the operator
// surface applies here too.
type Ticker struct {
	cron  *cron.Cron
	reg   *registry.Registry
	sinks []Sink
	log   *zap.SugaredLogger
}

// NewTicker builds a Ticker that, once Start is called, collects and
// publishes a Snapshot on every spec match (e.g. "@every 5s").
func NewTicker(reg *registry.Registry, sinks []Sink, log *zap.SugaredLogger) *Ticker {
	return &Ticker{
		cron:  cron.New(),
		reg:   reg,
		sinks: sinks,
		log:   log,
	}
}

// Start schedules the publish job and begins running it in the
// background. Returns an error only if spec fails to parse.
func (t *Ticker) Start(spec string) error {
	_, err := t.cron.AddFunc(spec, t.publishOnce)
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight job.
func (t *Ticker) Stop() {
	<-t.cron.Stop().Done()
}

func (t *Ticker) publishOnce() {
	snap := Collect(t.reg)
	for _, sink := range t.sinks {
		if sink == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.log.Errorw("status sink panicked", "panic", r)
				}
			}()
			sink.Publish(snap)
		}()
	}
}
