// Package common provides shared configuration and progress accounting for
// the ISMN / Sentinel-1 lab tools.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// DefaultLandcoverIDs are the CGLS-LC100 classes kept by the pre-filter:
// 40 cultivated and managed vegetation, 60 bare or sparse vegetation.
var DefaultLandcoverIDs = []int{40, 60}

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`

	DataDir       string  `yaml:"data_dir"`
	Depth         string  `yaml:"depth"`    // Sensor depth as written in ISMN headers
	BoxSize       float64 `yaml:"box_size"` // Footprint edge in metres, 0 for a point
	LandcoverIDs  []int   `yaml:"landcover_ids"`
	ChannelPolicy string  `yaml:"channel_policy"`
	SQLitePath    string  `yaml:"sqlite_path"`
	LogLevel      string  `yaml:"log_level"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     "localhost",
		ClickHousePort:     9000,
		ClickHouseDatabase: "ismn",
		ClickHouseUser:     "default",
		DataDir:            "./data",
		Depth:              "0.05",
		LandcoverIDs:       append([]int(nil), DefaultLandcoverIDs...),
		ChannelPolicy:      "first",
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is read
// into the environment first when present.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if yamlPath != "" {
		if err := cfg.LoadFile(yamlPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the fields present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	c.ClickHouseHost = getEnv("CLICKHOUSE_HOST", c.ClickHouseHost)
	c.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", c.ClickHouseDatabase)
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.ClickHouseUser)
	c.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.ClickHousePassword)
	c.DataDir = getEnv("ISMN_DATA_DIR", c.DataDir)
	c.Depth = getEnv("ISMN_DEPTH", c.Depth)
	c.ChannelPolicy = getEnv("ISMN_CHANNEL_POLICY", c.ChannelPolicy)
	c.SQLitePath = getEnv("ISMN_SQLITE_PATH", c.SQLitePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		c.ClickHousePort = port
	}
	if v := os.Getenv("ISMN_BOX_SIZE"); v != "" {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ISMN_BOX_SIZE: %w", err)
		}
		c.BoxSize = size
	}
	if v := os.Getenv("ISMN_LANDCOVER_IDS"); v != "" {
		ids, err := ParseIDs(v)
		if err != nil {
			return fmt.Errorf("invalid ISMN_LANDCOVER_IDS: %w", err)
		}
		c.LandcoverIDs = ids
	}
	return nil
}

// Validate checks the values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Depth) == "" {
		errs = append(errs, errors.New("depth is required"))
	}
	if c.BoxSize < 0 {
		errs = append(errs, fmt.Errorf("box size %v must not be negative", c.BoxSize))
	}
	if len(c.LandcoverIDs) == 0 {
		errs = append(errs, errors.New("at least one landcover id is required"))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
		errs = append(errs, fmt.Errorf("clickhouse port %d out of range", c.ClickHousePort))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed channel policy.
func (c *Config) Policy() (station.ChannelPolicy, error) {
	return station.ParseChannelPolicy(c.ChannelPolicy)
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// ISMNDir returns the directory holding the raw ISMN download.
func (c *Config) ISMNDir() string {
	return filepath.Join(c.DataDir, "ISMN")
}

// FilteredDir returns the directory holding depth-filtered station files.
func (c *Config) FilteredDir() string {
	return filepath.Join(c.DataDir, "ISMN_Filt")
}

// SentinelDir returns the directory holding Sentinel-1 exports.
func (c *Config) SentinelDir() string {
	return filepath.Join(c.DataDir, "S1")
}

// OutputDir returns the directory for merged exports.
func (c *Config) OutputDir() string {
	return filepath.Join(c.DataDir, "output")
}

// ParseIDs parses a comma-separated list of integers.
func ParseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids in %q", s)
	}
	return ids, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
