package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loaded from environment
// variables. Platform host and store DSN are mandatory; credentials must be
// either an API key or a username+password pair.
type Config struct {
	Protect ProtectConfig
	Store   StoreConfig
	Capture CaptureConfig
	HTTP    HTTPConfig
}

type ProtectConfig struct {
	Host      string
	Port      int
	APIKey    string
	Username  string
	Password  string
	VerifySSL bool
}

type StoreConfig struct {
	DSN string
}

type CaptureConfig struct {
	AllowedCameraIDs   []string
	AllowedCameraNames []string
	SkipCameraNames    []string
	MinConfidence      int
	PollInterval       time.Duration
	FetchLimit         int
	CatchupGap         time.Duration
	StoreUnreadable    bool
	AllowRawPlateLog   bool
}

type HTTPConfig struct {
	Listen    string
	JWTSecret string
}

// Load reads configuration from the environment and validates the mandatory
// keys. Missing mandatory configuration is a startup-fatal error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("UNIFI_PROTECT_PORT", 443)
	v.SetDefault("UNIFI_PROTECT_VERIFY_SSL", true)
	v.SetDefault("LPR_MIN_CONF", 50)
	v.SetDefault("LPR_POLL_INTERVAL", "5s")
	v.SetDefault("LPR_FETCH_LIMIT", 100)
	v.SetDefault("LPR_CATCHUP_GAP", "1m")
	v.SetDefault("LPR_STORE_UNREADABLE", false)
	v.SetDefault("LPR_ALLOW_RAW_PLATE_LOG", false)
	v.SetDefault("LPR_SKIP_CAMERA_SUBSTRINGS", "Entry,Exit,Kiosk")
	v.SetDefault("HTTP_LISTEN", ":8080")

	cfg := &Config{
		Protect: ProtectConfig{
			Host:      v.GetString("UNIFI_PROTECT_HOST"),
			Port:      v.GetInt("UNIFI_PROTECT_PORT"),
			APIKey:    v.GetString("UNIFI_PROTECT_API_KEY"),
			Username:  v.GetString("UNIFI_PROTECT_USERNAME"),
			Password:  v.GetString("UNIFI_PROTECT_PASSWORD"),
			VerifySSL: v.GetBool("UNIFI_PROTECT_VERIFY_SSL"),
		},
		Store: StoreConfig{
			DSN: v.GetString("POSTGRES_DSN"),
		},
		Capture: CaptureConfig{
			AllowedCameraIDs:   splitList(v.GetString("LPR_CAMERA_IDS")),
			AllowedCameraNames: splitList(v.GetString("LPR_CAMERA_NAMES")),
			SkipCameraNames:    splitList(v.GetString("LPR_SKIP_CAMERA_SUBSTRINGS")),
			MinConfidence:      v.GetInt("LPR_MIN_CONF"),
			PollInterval:       v.GetDuration("LPR_POLL_INTERVAL"),
			FetchLimit:         v.GetInt("LPR_FETCH_LIMIT"),
			CatchupGap:         v.GetDuration("LPR_CATCHUP_GAP"),
			StoreUnreadable:    v.GetBool("LPR_STORE_UNREADABLE"),
			AllowRawPlateLog:   v.GetBool("LPR_ALLOW_RAW_PLATE_LOG"),
		},
		HTTP: HTTPConfig{
			Listen:    v.GetString("HTTP_LISTEN"),
			JWTSecret: v.GetString("HTTP_JWT_SECRET"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Protect.Host == "" {
		return errors.New("UNIFI_PROTECT_HOST not set")
	}
	if c.Protect.APIKey == "" && (c.Protect.Username == "" || c.Protect.Password == "") {
		return errors.New("UNIFI_PROTECT_API_KEY or UNIFI_PROTECT_USERNAME+UNIFI_PROTECT_PASSWORD must be set")
	}
	if c.Store.DSN == "" {
		return errors.New("POSTGRES_DSN not set")
	}
	if c.Capture.MinConfidence < 0 || c.Capture.MinConfidence > 100 {
		return fmt.Errorf("LPR_MIN_CONF %d out of range [0,100]", c.Capture.MinConfidence)
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("LPR_POLL_INTERVAL must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
