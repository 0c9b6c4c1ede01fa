package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/homekeeper/internal/client/store"
	"github.com/dmitrijs2005/homekeeper/internal/flagx"
	"github.com/dmitrijs2005/homekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	DataDir             string         `json:"data_dir"`
	StoreDriver         string         `json:"store_driver"`
	LogFile             *string        `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	TombstoneRetention  timex.Duration `json:"tombstone_retention"`
	S3                  *JsonS3Config  `json:"s3"`
}

type JsonS3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Prefix    string `json:"prefix"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Keys missing from the file keep their current values.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.StoreDriver, jc.StoreDriver)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.LogFile != nil {
		cfg.LogFile = *jc.LogFile
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.TombstoneRetention.Duration > 0 {
		cfg.TombstoneRetention = jc.TombstoneRetention.Duration
	}
	if jc.S3 != nil {
		cfg.S3 = store.S3Config{
			Bucket:       jc.S3.Bucket,
			Region:       jc.S3.Region,
			BaseEndpoint: jc.S3.Endpoint,
			AccessKey:    jc.S3.AccessKey,
			SecretKey:    jc.S3.SecretKey,
			Prefix:       jc.S3.Prefix,
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
