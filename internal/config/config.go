// Package config loads the sync agent's settings via Viper.
//
// Settings come from, in increasing priority: built-in defaults, a
// config.yaml file, and GFXSYNC_-prefixed environment variables. Loading
// configuration and injecting it into the agent is itself outside the core
// sync pipeline's concern — this package only produces the Settings value
// the agent is constructed with.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds everything the agent needs to start. Field names mirror
// the configuration keys named in the specification.
type Settings struct {
	RemoteURL             string
	RemoteKey             string
	WatchPath             string
	QueueDBPath           string
	DebounceSeconds       float64
	RetryDelay            float64
	MaxRetries            int
	QueueProcessInterval  int
	LogLevel              string
	LogPath               string
	HealthIntervalSeconds int
}

// Load reads settings from the given config file path (if non-empty),
// falling back to ./gfxsync.yaml and $XDG_CONFIG_HOME/gfxsync/config.yaml.
// Environment variables override values from the file, and the file
// overrides the built-in defaults.
//
// RemoteURL and RemoteKey are required; their absence is a fatal
// configuration error, per the spec's "Configuration / init failure"
// taxonomy entry.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configFileSet := false
	if configPath != "" {
		v.SetConfigFile(configPath)
		configFileSet = true
	} else {
		if _, err := os.Stat("gfxsync.yaml"); err == nil {
			v.SetConfigFile("gfxsync.yaml")
			configFileSet = true
		} else if configDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(configDir, "gfxsync", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("GFXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("remote_url", "")
	v.SetDefault("remote_key", "")
	v.SetDefault("watch_path", "")
	v.SetDefault("queue_db_path", "sync_queue/pending.db")
	v.SetDefault("debounce_seconds", 2.0)
	v.SetDefault("retry_delay", 5.0)
	v.SetDefault("max_retries", 5)
	v.SetDefault("queue_process_interval", 60)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_path", "")
	v.SetDefault("health_interval_seconds", 60)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	s := &Settings{
		RemoteURL:             v.GetString("remote_url"),
		RemoteKey:             v.GetString("remote_key"),
		WatchPath:             normalizePath(v.GetString("watch_path")),
		QueueDBPath:           normalizePath(v.GetString("queue_db_path")),
		DebounceSeconds:       v.GetFloat64("debounce_seconds"),
		RetryDelay:            v.GetFloat64("retry_delay"),
		MaxRetries:            v.GetInt("max_retries"),
		QueueProcessInterval:  v.GetInt("queue_process_interval"),
		LogLevel:              v.GetString("log_level"),
		LogPath:               normalizePath(v.GetString("log_path")),
		HealthIntervalSeconds: v.GetInt("health_interval_seconds"),
	}

	if s.RemoteURL == "" || s.RemoteKey == "" {
		return nil, fmt.Errorf("remote_url and remote_key are required")
	}

	return s, nil
}

// normalizePath converts backslashes to forward slashes regardless of host
// OS, matching the original implementation's path normalization.
func normalizePath(p string) string {
	if p == "" {
		return p
	}
	return strings.ReplaceAll(p, `\`, "/")
}
