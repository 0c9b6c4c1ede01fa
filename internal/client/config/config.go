package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/store"
)

// Config holds runtime settings for the homekeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncInterval: how often a background sync pass runs while online.
//   - DataDir: directory holding the client database and the file store.
//   - StoreDriver: document store backend (sqlite, file, s3, memory).
//   - LogFile: rotated log file; empty logs to stderr.
//   - TombstoneRetention: how long acknowledged tombstones are kept.
//   - S3: bucket settings for the s3 driver.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	DataDir             string
	StoreDriver         string
	LogFile             string
	LogLevel            string
	TombstoneRetention  time.Duration
	S3                  store.S3Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = time.Minute
	c.DataDir = "homekeeper-data"
	c.StoreDriver = store.DriverSQLite
	c.LogFile = filepath.Join("homekeeper-data", "client.log")
	c.LogLevel = "info"
	c.TombstoneRetention = 30 * 24 * time.Hour
}

// DatabasePath is the client SQLite database inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "client.db")
}

// StoreOptions translates the config into document store options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver: c.StoreDriver,
		Path:   filepath.Join(c.DataDir, "documents"),
		S3:     c.S3,
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
