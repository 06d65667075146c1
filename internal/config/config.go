// Package config loads the declarative site list and ambient settings
// that drive a NightDriverServer process: nothing here is reconfigured
// after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every setting read at process startup.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Status  StatusConfig  `mapstructure:"status"`
	Sites   []SiteConfig  `mapstructure:"sites"`
}

// ServerConfig contains the operator HTTP/WebSocket API settings.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	SentinelPath string `mapstructure:"sentinel_path"`
}

// LoggerConfig contains logging settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ClusterConfig controls the optional cross-process site-ownership lease.
type ClusterConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
}

// StatusConfig controls the periodic status ticker and its sinks.
type StatusConfig struct {
	CronSpec string           `mapstructure:"cron_spec"`
	MQTT     *StatusMQTTConfig   `mapstructure:"mqtt"`
	Influx   *StatusInfluxConfig `mapstructure:"influx"`
}

// StatusMQTTConfig configures the optional MQTT status sink.
type StatusMQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StatusInfluxConfig configures the optional InfluxDB status sink.
type StatusInfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// SiteConfig declares one Site: its pixel count, target frame rate, the
// timezone schedules are evaluated in, its strips and its schedules.
type SiteConfig struct {
	Name       string           `mapstructure:"name"`
	PixelCount int              `mapstructure:"pixel_count"`
	TargetFPS  int              `mapstructure:"target_fps"`
	Timezone   string           `mapstructure:"timezone"`
	Strips     []StripConfig    `mapstructure:"strips"`
	Schedules  []ScheduleConfig `mapstructure:"schedules"`
}

// StripConfig declares one physical controller attached to a Site.
type StripConfig struct {
	Name         string `mapstructure:"name"`
	Transport    string `mapstructure:"transport"` // "net" (default), "serial", "local"
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Length       int    `mapstructure:"length"`
	ChannelMask  uint16 `mapstructure:"channel_mask"`
	OffsetInSite int    `mapstructure:"offset_in_site"`
	Reversed     bool   `mapstructure:"reversed"`
	Compress     bool   `mapstructure:"compress"`
}

// ScheduleConfig declares one scheduled effect's activation window and the
// name of the effect it drives, resolved against an effect catalog by the
// caller.
type ScheduleConfig struct {
	Effect      string `mapstructure:"effect"`
	Days        string `mapstructure:"days"` // "weekdays", "weekend", "all", or comma list "mon,tue"
	StartHour   int    `mapstructure:"start_hour"`
	StartMinute int    `mapstructure:"start_minute"`
	EndHour     int    `mapstructure:"end_hour"`
	// EndMinute is nil when omitted; Load fills it with 60 after parsing so
	// omitting it means "through the whole end hour" while an explicit 0 is
	// honored exactly.
	EndMinute *int `mapstructure:"end_minute"`
}

const envPrefix = "NIGHTDRIVER"

// DefaultStripPort is the strip port assumed when a StripConfig omits one.
const DefaultStripPort = 49152

// Load reads configuration from configPath (or the usual search
// locations if empty), applying NIGHTDRIVER_-prefixed environment
// variable overrides on top.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	return unmarshalAndValidate(v)
}

// unmarshalAndValidate applies NIGHTDRIVER_-prefixed environment overrides
// to an already-populated viper instance, then unmarshals and validates
// the result. Shared by Load (local file) and LoadFromS3 (remote object)
// so both sources go through identical defaulting and validation.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.normalizeAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalizeAndValidate() error {
	for si := range c.Sites {
		s := &c.Sites[si]
		if s.PixelCount <= 0 {
			return fmt.Errorf("config: site %q: pixel_count must be positive", s.Name)
		}
		if s.TargetFPS <= 0 {
			s.TargetFPS = 22
		}
		for ti := range s.Strips {
			st := &s.Strips[ti]
			if st.Port == 0 {
				st.Port = DefaultStripPort
			}
			if st.OffsetInSite+st.Length > s.PixelCount {
				return fmt.Errorf("config: site %q strip %q: offset_in_site(%d)+length(%d) exceeds pixel_count(%d)",
					s.Name, st.Name, st.OffsetInSite, st.Length, s.PixelCount)
			}
		}
		for hi := range s.Schedules {
			sc := &s.Schedules[hi]
			if sc.EndMinute == nil {
				full := 60
				sc.EndMinute = &full
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file_path", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("status.cron_spec", "@every 5s")
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".nightdriverserver")
}
