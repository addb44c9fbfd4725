package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./prematch.db" {
			t.Errorf("expected database path ./prematch.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Correlation.RecentWindow.Duration != 3*time.Hour {
			t.Errorf("expected recent window 3h, got %s", config.Correlation.RecentWindow)
		}

		if config.Correlation.RetryFloor != -6 {
			t.Errorf("expected retry floor -6, got %d", config.Correlation.RetryFloor)
		}

		if config.Cache.ListingTTL.Duration != 10*time.Minute {
			t.Errorf("expected listing ttl 10m, got %s", config.Cache.ListingTTL)
		}

		if len(config.Correlation.OtherCategories) == 0 {
			t.Error("expected default other categories")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[correlation]
recent_window = "90m"
retry_floor = -3
other_categories = [10, 20]

[backfill]
days = 2
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Correlation.RecentWindow.Duration != 90*time.Minute {
			t.Errorf("expected recent window 90m, got %s", config.Correlation.RecentWindow)
		}

		if config.Correlation.RetryFloor != -3 {
			t.Errorf("expected retry floor -3, got %d", config.Correlation.RetryFloor)
		}

		if len(config.Correlation.OtherCategories) != 2 {
			t.Errorf("expected 2 other categories, got %v", config.Correlation.OtherCategories)
		}

		if config.Backfill.Days != 2 {
			t.Errorf("expected backfill days 2, got %d", config.Backfill.Days)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port to keep default 3000, got %d", config.Server.Port)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tt := []struct {
			name        string
			config      string
			wantInvalid bool
		}{
			{name: "non negative floor", config: "[correlation]\nretry_floor = 0\n", wantInvalid: true},
			{name: "bad duration", config: "[correlation]\nrecent_window = \"soon\"\n"},
			{name: "negative backfill days", config: "[backfill]\ndays = -1\n", wantInvalid: true},
			{name: "in-memory database", config: "[database]\npath = \":memory:\"\n", wantInvalid: true},
			{name: "shared in-memory database", config: "[database]\npath = \"file::memory:?cache=shared\"\n", wantInvalid: true},
			{name: "empty other categories", config: "[correlation]\nother_categories = []\n", wantInvalid: true},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.config), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if err == nil {
					t.Fatal("expected an error")
				}
				if tc.wantInvalid && !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
