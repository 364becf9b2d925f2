// Package config provides configuration management for the dryfire shot detector.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/dryfire/internal/shot"
)

// Config holds the application configuration with thread-safe access.
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Camera      CameraConfig    `yaml:"camera"`
	Detection   DetectionConfig `yaml:"detection"`
	Shots       ShotsConfig     `yaml:"shots"`
	Storage     StorageConfig   `yaml:"storage"`
	Log         LogConfig       `yaml:"log"`
	mu          sync.RWMutex
	subscribers []func(*Config)
}

// Snapshot is a read-only copy of the current configuration.
type Snapshot struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Camera    CameraConfig    `yaml:"camera" json:"camera"`
	Detection DetectionConfig `yaml:"detection" json:"detection"`
	Shots     ShotsConfig     `yaml:"shots" json:"shots"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	ProfileAddr string `yaml:"profile_addr" json:"profile_addr"`
	StaticDir   string `yaml:"static_dir" json:"static_dir"`
}

// CameraConfig contains capture device settings.
type CameraConfig struct {
	// Device is a camera index or a video file path.
	Device string `yaml:"device" json:"device"`
	FPS    int    `yaml:"fps" json:"fps"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// DetectionConfig contains shot detector settings.
type DetectionConfig struct {
	Kind        string `yaml:"kind" json:"kind"`
	StartPaused bool   `yaml:"start_paused" json:"start_paused"`
	SectorRows  int    `yaml:"sector_rows" json:"sector_rows"`
	SectorCols  int    `yaml:"sector_cols" json:"sector_cols"`
	// DisabledSectors lists row-major sector indexes excluded from scanning.
	DisabledSectors []int `yaml:"disabled_sectors" json:"disabled_sectors"`
	// MovingAveragePeriod overrides the fps-derived period when positive.
	MovingAveragePeriod int `yaml:"moving_average_period" json:"moving_average_period"`
	// MinShotDimension overrides the resolution-derived value when positive.
	MinShotDimension int `yaml:"min_shot_dimension" json:"min_shot_dimension"`
	Workers          int `yaml:"workers" json:"workers"`
}

// ShotsConfig contains shot gate settings.
type ShotsConfig struct {
	IgnoreColor       string      `yaml:"ignore_color" json:"ignore_color"`
	DedupWindowMs     int         `yaml:"dedup_window_ms" json:"dedup_window_ms"`
	DedupRadius       float64     `yaml:"dedup_radius" json:"dedup_radius"`
	ScaleForProjector bool        `yaml:"scale_for_projector" json:"scale_for_projector"`
	Arena             *shot.Arena `yaml:"arena,omitempty" json:"arena,omitempty"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{subscribers: make([]func(*Config), 0)}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file and applies env var overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{subscribers: make([]func(*Config), 0)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	// Set defaults for any missing config values
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("DRYFIRE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if addr := os.Getenv("DRYFIRE_PROFILE_ADDR"); addr != "" {
		c.Server.ProfileAddr = addr
	}

	if device := os.Getenv("DRYFIRE_CAMERA_DEVICE"); device != "" {
		c.Camera.Device = device
	}
	if fps := os.Getenv("DRYFIRE_CAMERA_FPS"); fps != "" {
		if f, err := strconv.Atoi(fps); err == nil {
			c.Camera.FPS = f
		}
	}

	if kind := os.Getenv("DRYFIRE_DETECTOR"); kind != "" {
		c.Detection.Kind = kind
	}
	if workers := os.Getenv("DRYFIRE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			c.Detection.Workers = w
		}
	}

	if color := os.Getenv("DRYFIRE_IGNORE_COLOR"); color != "" {
		c.Shots.IgnoreColor = color
	}

	if path := os.Getenv("DRYFIRE_DB_PATH"); path != "" {
		c.Storage.Path = path
	}

	if level := os.Getenv("DRYFIRE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.Camera.Device == "" {
		c.Camera.Device = "0"
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = 30
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = 640
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = 480
	}

	if c.Detection.Kind == "" {
		c.Detection.Kind = "pixel"
	}
	if c.Detection.SectorRows <= 0 {
		c.Detection.SectorRows = 3
	}
	if c.Detection.SectorCols <= 0 {
		c.Detection.SectorCols = 3
	}

	if c.Shots.DedupWindowMs <= 0 {
		c.Shots.DedupWindowMs = int(shot.DefaultDedupWindow.Milliseconds())
	}
	if c.Shots.DedupRadius <= 0 {
		c.Shots.DedupRadius = shot.DefaultDedupRadius
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if _, err := shot.ParseColor(c.Shots.IgnoreColor); err != nil {
		return fmt.Errorf("shots.ignore_color: %w", err)
	}

	sectors := c.Detection.SectorRows * c.Detection.SectorCols
	for _, idx := range c.Detection.DisabledSectors {
		if idx < 0 || idx >= sectors {
			return fmt.Errorf("detection.disabled_sectors: index %d outside %dx%d grid",
				idx, c.Detection.SectorRows, c.Detection.SectorCols)
		}
	}

	return nil
}

// Update atomically updates the configuration
func (c *Config) Update(updater func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updater(c)
	c.notifySubscribers()
}

// Get safely retrieves a snapshot of the config
func (c *Config) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	detection := c.Detection
	detection.DisabledSectors = append([]int(nil), c.Detection.DisabledSectors...)

	shots := c.Shots
	if c.Shots.Arena != nil {
		arena := *c.Shots.Arena
		shots.Arena = &arena
	}

	return Snapshot{
		Server:    c.Server,
		Camera:    c.Camera,
		Detection: detection,
		Shots:     shots,
		Storage:   c.Storage,
		Log:       c.Log,
	}
}

// Subscribe registers a callback for config changes
func (c *Config) Subscribe(callback func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, callback)
}

func (c *Config) notifySubscribers() {
	for _, callback := range c.subscribers {
		go callback(c)
	}
}

// Save writes the current configuration to a file
func (c *Config) Save(path string) error {
	snap := c.Get()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
