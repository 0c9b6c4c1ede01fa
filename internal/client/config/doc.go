// Package config loads runtime configuration for the homekeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      online status check interval (seconds)
//	-s int      background sync interval (seconds)
//	-d string   document store driver: sqlite, file, s3, memory
//	-p string   data directory
//	-l string   log file, empty for stderr
//	-r int      tombstone retention (hours)
//
// # JSON schema
//
// Intervals are timex.Duration values, so they can be strings like "3s" or
// integer nanoseconds. S3 settings are only read from JSON:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "sync_interval": "1m",
//	  "data_dir": "/var/lib/homekeeper",
//	  "store_driver": "s3",
//	  "log_file": "",
//	  "log_level": "debug",
//	  "tombstone_retention": "720h",
//	  "s3": {"bucket": "homes", "region": "us-east-1", "endpoint": "http://localhost:9000",
//	         "access_key": "minio", "secret_key": "minio123", "prefix": "dev"}
//	}
package config
