package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Correlation CorrelationConfig `toml:"correlation"`
	Backfill    BackfillConfig    `toml:"backfill"`
	Cache       CacheConfig       `toml:"cache"`
	Locks       LocksConfig       `toml:"locks"`
	Categories  CategoriesConfig  `toml:"categories"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CorrelationConfig controls the hash correlation passes.
type CorrelationConfig struct {
	RecentWindow    Duration `toml:"recent_window"`    // age limit for the recent-window selection
	RetryFloor      int      `toml:"retry_floor"`      // dehash status marking an exhausted release
	GroupBatch      int      `toml:"group_batch"`      // row limit for per-group passes
	GlobalBatch     int      `toml:"global_batch"`     // row limit for global passes
	OtherCategories []int    `toml:"other_categories"` // category ids scanned by the category window
}

// BackfillConfig controls the direct title backfill pass.
type BackfillConfig struct {
	Days int `toml:"days"` // 0 scans every unmatched release
}

// CacheConfig contains read cache lifetimes.
type CacheConfig struct {
	ListingTTL Duration `toml:"listing_ttl"`
}

// LocksConfig contains the directory holding per-group lock files.
type LocksConfig struct {
	Dir string `toml:"dir"`
}

// CategoriesConfig maps parsed release types to category ids.
type CategoriesConfig struct {
	Movie     int `toml:"movie"`
	TV        int `toml:"tv"`
	Music     int `toml:"music"`
	Audiobook int `toml:"audiobook"`
	Book      int `toml:"book"`
	App       int `toml:"app"`
	Game      int `toml:"game"`
	Other     int `toml:"other"`
}

// Duration wraps [time.Duration] so it can be written as "3h" or "10m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate checks the settings the matching drivers depend on.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if IsMemoryPath(c.Database.Path) {
		return fmt.Errorf("%w: database.path must be a file, the drivers read and write on separate connections", ErrInvalidConfig)
	}
	if c.Correlation.RetryFloor >= 0 {
		return fmt.Errorf("%w: correlation.retry_floor must be negative, got %d", ErrInvalidConfig, c.Correlation.RetryFloor)
	}
	if c.Correlation.RecentWindow.Duration <= 0 {
		return fmt.Errorf("%w: correlation.recent_window must be positive", ErrInvalidConfig)
	}
	if len(c.Correlation.OtherCategories) == 0 {
		return fmt.Errorf("%w: correlation.other_categories cannot be empty", ErrInvalidConfig)
	}
	if c.Backfill.Days < 0 {
		return fmt.Errorf("%w: backfill.days cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
