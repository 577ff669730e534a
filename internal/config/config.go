package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	AssetDir        string        `envconfig:"ASSET_DIR" default:"./data/assets"`
	ModelPath       string        `envconfig:"MODEL_PATH"`
	AllowedOrigins  string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	SurfaceSize     int           `envconfig:"SURFACE_SIZE" default:"2048"`
	ShoulderVariant string        `envconfig:"SHOULDER_VARIANT" default:"setIn"`
	CameraDuration  time.Duration `envconfig:"CAMERA_DURATION" default:"1s"`
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL" default:"16ms"`
	CameraEasing    string        `envconfig:"CAMERA_EASING" default:"cubicOut"`
	// Hosts remote asset references may be fetched from. Empty disables
	// remote fetching; ".example.com" admits every subdomain.
	RemoteAssetHosts string `envconfig:"REMOTE_ASSET_HOSTS"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.SurfaceSize <= 0 || c.SurfaceSize > texture.MaxSize {
		return fmt.Errorf("config: SURFACE_SIZE must be in 1..%d, got %d", texture.MaxSize, c.SurfaceSize)
	}
	if _, err := region.ParseVariant(c.ShoulderVariant); err != nil {
		return fmt.Errorf("config: SHOULDER_VARIANT: %w", err)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: TICK_INTERVAL must be positive")
	}
	if c.CameraDuration < 0 {
		return fmt.Errorf("config: CAMERA_DURATION must not be negative")
	}
	if _, err := camera.ParseEasing(c.CameraEasing); err != nil {
		return fmt.Errorf("config: CAMERA_EASING: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Variant returns the parsed shoulder variant.
func (c *Config) Variant() region.Variant {
	v, _ := region.ParseVariant(c.ShoulderVariant)
	return v
}

// Easing returns the parsed camera easing curve.
func (c *Config) Easing() camera.Easing {
	e, _ := camera.ParseEasing(c.CameraEasing)
	return e
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Origins splits ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// RemoteHosts splits REMOTE_ASSET_HOSTS the same way.
func (c *Config) RemoteHosts() []string {
	return splitList(c.RemoteAssetHosts)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
