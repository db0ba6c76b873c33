// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads gateway settings from an optional file, RXBRIDGE_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RXBRIDGE_SERIAL_PORT
const EnvPrefix = "RXBRIDGE"

type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// WebSocketConfig selects a remote serial bridge instead of a local port
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

type ControllerConfig struct {
	InitBackoff time.Duration `mapstructure:"initBackoff"`
	IdleCycles  int           `mapstructure:"idleCycles"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	WaitTimeout  time.Duration `mapstructure:"waitTimeout"` // longest a request waits for a report
	CommandRate  float64       `mapstructure:"commandRate"` // command requests per second
	CommandBurst int           `mapstructure:"commandBurst"`
}

// FileConfig controls the rotating log file. An empty Filename disables it.
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	File   FileConfig `mapstructure:"file"`
}

type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config is the complete gateway configuration
type Config struct {
	Serial     SerialConfig     `mapstructure:"serial"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Controller ControllerConfig `mapstructure:"controller"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// FlagKeys maps command line flag names to configuration keys
var FlagKeys = map[string]string{
	"port":          "serial.port",
	"baud":          "serial.baud",
	"url":           "websocket.url",
	"username":      "websocket.username",
	"no-ssl-verify": "websocket.noSSLVerify",
	"listen":        "http.addr",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file.filename",
}

// Load reads configuration. path may be empty, in which case rxbridge.{yaml,toml,json}
// is looked up in the working directory and /etc/rxbridge, and a missing file is
// not an error. Flags present in flags and named in FlagKeys override everything
// else when set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rxbridge")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rxbridge")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("serial.readTimeout", "200ms")

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.noSSLVerify", false)

	v.SetDefault("controller.initBackoff", "200ms")
	v.SetDefault("controller.idleCycles", 20)

	v.SetDefault("http.addr", "0.0.0.0:5000")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "35s")
	v.SetDefault("http.waitTimeout", "30s")
	v.SetDefault("http.commandRate", 10)
	v.SetDefault("http.commandBurst", 5)

	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
