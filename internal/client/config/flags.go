package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the backend server
//	-i int      online check interval in seconds
//	-s int      background sync interval in seconds
//	-d string   document store driver
//	-p string   data directory
//	-l string   log file
//	-r int      tombstone retention in hours
//
// Only flags registered here are parsed; the rest of os.Args is ignored.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "background sync interval (in seconds)")
	fs.StringVar(&cfg.StoreDriver, "d", cfg.StoreDriver, "document store driver: sqlite, file, s3 or memory")
	fs.StringVar(&cfg.DataDir, "p", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file (empty logs to stderr)")
	retention := fs.Int("r", int(cfg.TombstoneRetention.Hours()), "tombstone retention (in hours)")

	if err := flagx.Parse(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.TombstoneRetention = time.Duration(*retention) * time.Hour
}
