package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/nightdriverserver/nightdriverserver/internal/api"
	"github.com/nightdriverserver/nightdriverserver/internal/api/middleware"
	"github.com/nightdriverserver/nightdriverserver/internal/cluster"
	"github.com/nightdriverserver/nightdriverserver/internal/config"
	"github.com/nightdriverserver/nightdriverserver/internal/effect"
	"github.com/nightdriverserver/nightdriverserver/internal/health"
	nlogger "github.com/nightdriverserver/nightdriverserver/internal/logger"
	"github.com/nightdriverserver/nightdriverserver/internal/pixel"
	"github.com/nightdriverserver/nightdriverserver/internal/registry"
	"github.com/nightdriverserver/nightdriverserver/internal/shutdown"
	"github.com/nightdriverserver/nightdriverserver/internal/site"
	"github.com/nightdriverserver/nightdriverserver/internal/status"
	"github.com/nightdriverserver/nightdriverserver/internal/strip"
	"github.com/nightdriverserver/nightdriverserver/internal/websocket"
	"github.com/nightdriverserver/nightdriverserver/pkg/effects"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// defaultLocalStripHz is the SPI clock used for directly-wired APA102
// strips; APA102 tolerates much higher rates but this is a conservative
// default for long cable runs.
const defaultLocalStripHz = 8 * physic.MegaHertz

// defaultTimezone is used when a site configures no timezone and the OS
// TZ environment variable is unset, per the documented schedule-activation
// timezone precedence (site config, then TZ, then this default).
const defaultTimezone = "America/Los_Angeles"

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./configs/config.yaml or ~/.nightdriverserver)")
	flag.Parse()

	fmt.Printf("NightDriverServer v%s\n", Version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := nlogger.Init(nlogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		LogDir:     cfg.Logger.FilePath,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   true,
	}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	sugar := nlogger.Get().Sugar()
	defer nlogger.Sync()

	if _, err := host.Init(); err != nil {
		sugar.Warnw("periph host init failed, local SPI strips unavailable", "error", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()
	nlogger.SetBroadcaster(func(level, message, source string, fields map[string]interface{}) {
		wsHub.Broadcast(websocket.MessageTypeLog, map[string]interface{}{
			"level":   level,
			"message": message,
			"source":  source,
			"fields":  fields,
		})
	})

	clusterMgr, err := cluster.NewManager(cfg.Cluster.RedisAddr, sugar)
	if err != nil {
		sugar.Fatalw("failed to init cluster manager", "error", err)
	}

	sites, err := buildSites(cfg, clusterMgr, sugar)
	if err != nil {
		sugar.Fatalw("failed to build sites", "error", err)
	}

	reg := registry.New(sites, sugar)

	ctx, stop := shutdown.Context(cfg.Server.SentinelPath, sugar)
	defer stop()

	reg.Start(ctx)

	hc := buildHealthChecker(sites)
	hc.StartPeriodicChecks(ctx)

	sinks := buildStatusSinks(cfg, wsHub, sugar)
	ticker := status.NewTicker(reg, sinks, sugar)
	if err := ticker.Start(cfg.Status.CronSpec); err != nil {
		sugar.Fatalw("failed to start status ticker", "error", err)
	}
	defer ticker.Stop()

	app := fiber.New(fiber.Config{AppName: "NightDriverServer v" + Version})
	app.Use(recover.New())
	app.Use(fiberlog.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	svc := api.NewService(reg, hc, wsHub, stop, sugar)
	jwtConfig := middleware.JWTConfig{
		SecretKey:    cfg.Server.JWTSecret,
		AllowedRoles: []string{"operator"},
	}
	apiKeyStore := middleware.NewAPIKeyStore()
	automationKey, _, err := apiKeyStore.GenerateAPIKey("bootstrap-automation", []string{"shutdown"}, 365*24*time.Hour)
	if err != nil {
		sugar.Fatalw("failed to mint automation API key", "error", err)
	}
	sugar.Infow("minted automation API key for unattended shutdown calls, shown once", "api_key", automationKey)
	api.SetupRoutes(app, svc, jwtConfig, apiKeyStore)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		sugar.Infow("operator API listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			sugar.Errorw("operator API stopped", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	os.Exit(0)
}

// loadConfig prefers a live S3 object over the local file when
// NIGHTDRIVER_CONFIG_S3_BUCKET is set, falling back to config.Load
// otherwise.
func loadConfig(configPath string) (*config.Config, error) {
	bucket := os.Getenv("NIGHTDRIVER_CONFIG_S3_BUCKET")
	if bucket == "" {
		return config.Load(configPath)
	}

	key := os.Getenv("NIGHTDRIVER_CONFIG_S3_KEY")
	if key == "" {
		key = "config.yaml"
	}
	region := os.Getenv("NIGHTDRIVER_CONFIG_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	return config.LoadFromS3(config.S3Source{Region: region, Bucket: bucket, Key: key})
}

// buildSites constructs every configured Site along with its strips and
// schedules. A site whose cluster lease is already held elsewhere is
// skipped entirely rather than started in a half-owned state.
func buildSites(cfg *config.Config, clusterMgr *cluster.Manager, log *zap.SugaredLogger) ([]*site.Site, error) {
	var sites []*site.Site

	for _, sc := range cfg.Sites {
		if _, ok := clusterMgr.TryAcquire(context.Background(), sc.Name); !ok {
			log.Infow("skipping site owned by another process", "site", sc.Name)
			continue
		}

		tz := sc.Timezone
		if tz == "" {
			tz = os.Getenv("TZ")
		}
		if tz == "" {
			tz = defaultTimezone
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("site %q: load timezone %q: %w", sc.Name, tz, err)
		}

		strips := make([]strip.Strip, 0, len(sc.Strips))
		for _, stc := range sc.Strips {
			s, err := buildStrip(stc, log)
			if err != nil {
				return nil, fmt.Errorf("site %q: strip %q: %w", sc.Name, stc.Name, err)
			}
			strips = append(strips, s)
		}

		schedules := make([]effect.ScheduledEffect, 0, len(sc.Schedules))
		for _, hc := range sc.Schedules {
			days, err := effect.ParseDays(hc.Days)
			if err != nil {
				return nil, fmt.Errorf("site %q: schedule %q: %w", sc.Name, hc.Effect, err)
			}
			eff, err := effectCatalog(hc.Effect, sc.PixelCount)
			if err != nil {
				return nil, fmt.Errorf("site %q: %w", sc.Name, err)
			}
			endMinute := 60
			if hc.EndMinute != nil {
				endMinute = *hc.EndMinute
			}
			schedules = append(schedules, effect.NewWithMinutes(eff, days, hc.StartHour, hc.StartMinute, hc.EndHour, endMinute))
		}

		sites = append(sites, site.New(sc.Name, sc.PixelCount, sc.TargetFPS, loc, schedules, strips, log))
	}

	return sites, nil
}

// buildStrip dispatches on Transport to construct the right Strip
// implementation for one configured controller.
func buildStrip(stc config.StripConfig, log *zap.SugaredLogger) (strip.Strip, error) {
	desc := strip.Descriptor{
		Host:         stc.Host,
		Port:         stc.Port,
		Name:         stc.Name,
		Length:       stc.Length,
		ChannelMask:  stc.ChannelMask,
		OffsetInSite: stc.OffsetInSite,
		Reversed:     stc.Reversed,
		Compress:     stc.Compress,
	}

	switch stc.Transport {
	case "", "net":
		return strip.NewNetStrip(desc, log), nil
	case "serial":
		return strip.NewSerialStrip(desc, log), nil
	case "local":
		return strip.NewLocalStrip(desc, stc.Host, defaultLocalStripHz, log)
	default:
		return nil, fmt.Errorf("unknown transport %q", stc.Transport)
	}
}

// effectCatalog resolves a configured effect name to a concrete
// pkg/effects implementation sized for the owning site's pixel count.
// This is the server's only effect source: new visuals are added here at
// compile time, matching the Non-goal that rules out runtime authoring.
func effectCatalog(name string, pixelCount int) (effect.Effect, error) {
	switch name {
	case "solid-red":
		return effects.NewSolidColor(name, pixel.Pixel{R: 255}), nil
	case "solid-white":
		return effects.NewSolidColor(name, pixel.Pixel{R: 255, G: 255, B: 255}), nil
	case "rainbow":
		return effects.NewRainbow(name, 360.0/float64(maxInt(pixelCount, 1)), 60), nil
	case "palette-scroller":
		return effects.NewPaletteScroller(name, []pixel.Pixel{
			{R: 255, G: 0, B: 0},
			{R: 255, G: 140, B: 0},
			{R: 0, G: 200, B: 255},
		}, 10), nil
	case "comet":
		return effects.NewComet(name, pixel.Pixel{R: 0, G: 128, B: 255}, 4, float64(pixelCount)/2, 0.15), nil
	case "fireworks":
		return effects.NewFireworks(name, 0.05, 20, 0.03), nil
	default:
		return nil, fmt.Errorf("unknown effect %q", name)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// buildHealthChecker registers the ambient process checks plus one
// render-loop check per site.
func buildHealthChecker(sites []*site.Site) *health.HealthChecker {
	hc := health.NewHealthChecker()

	hc.RegisterCheck("memory", health.MemoryHealthCheck(func() (used, total uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}), 30*time.Second)

	hc.RegisterCheck("goroutines", health.GoroutineHealthCheck(runtime.NumGoroutine, 5000), 30*time.Second)

	for _, s := range sites {
		hc.RegisterCheck("render:"+s.Name, health.RenderLoopHealthCheck(s.Name, s.SpareMs), 5*time.Second)
	}

	return hc
}

// buildStatusSinks constructs the status fan-out list from configuration.
// The console and WebSocket sinks are always present; MQTT and Influx
// are opt-in.
func buildStatusSinks(cfg *config.Config, wsHub *websocket.Hub, log *zap.SugaredLogger) []status.Sink {
	sinks := []status.Sink{
		status.NewConsoleSink(log),
		status.NewWebSocketSink(wsHub),
	}

	if cfg.Status.MQTT != nil {
		sink, err := status.NewMQTTSink(status.MQTTConfig{
			Broker:   cfg.Status.MQTT.Broker,
			Topic:    cfg.Status.MQTT.Topic,
			ClientID: cfg.Status.MQTT.ClientID,
			Username: cfg.Status.MQTT.Username,
			Password: cfg.Status.MQTT.Password,
			QoS:      1,
		}, log)
		if err != nil {
			log.Warnw("mqtt status sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	if cfg.Status.Influx != nil {
		sinks = append(sinks, status.NewInfluxSink(status.InfluxConfig{
			URL:    cfg.Status.Influx.URL,
			Token:  cfg.Status.Influx.Token,
			Org:    cfg.Status.Influx.Org,
			Bucket: cfg.Status.Influx.Bucket,
		}, log))
	}

	return sinks
}
