package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DownloadDir     string
	DownloadTimeout time.Duration
	UserAgent       string

	DBPath      string
	AutoMigrate bool

	BridgeHost string
	BridgePort int
	BridgeURL  string

	PollInterval time.Duration

	LogLevel string
	LogFile  string
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// SetDefaults registers the fallback for every key GetConfig reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("download.directory", "./downloads")
	v.SetDefault("download.timeout", 5*time.Minute)
	v.SetDefault("download.user_agent", DefaultUserAgent)

	v.SetDefault("database.path", "./data/vsixgrab.db")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 7878)
	v.SetDefault("bridge.url", "http://127.0.0.1:7878")

	v.SetDefault("watch.poll_interval", 250*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func GetConfig() Config {
	return FromViper(viper.GetViper())
}

func FromViper(v *viper.Viper) Config {
	return Config{
		DownloadDir:     v.GetString("download.directory"),
		DownloadTimeout: v.GetDuration("download.timeout"),
		UserAgent:       v.GetString("download.user_agent"),

		DBPath:      v.GetString("database.path"),
		AutoMigrate: v.GetBool("database.auto_migrate"),

		BridgeHost: v.GetString("bridge.host"),
		BridgePort: v.GetInt("bridge.port"),
		BridgeURL:  v.GetString("bridge.url"),

		PollInterval: v.GetDuration("watch.poll_interval"),

		LogLevel: v.GetString("log.level"),
		LogFile:  v.GetString("log.file"),
	}
}
