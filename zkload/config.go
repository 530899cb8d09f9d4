package main

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// zkload config.toml key mapping to runtime settings.
type fileConfig struct {
	Server               string   `toml:"server"`
	ListenAddr           string   `toml:"listen_addr"`
	Nodes                []string `toml:"nodes"`
	TickMillis           int      `toml:"tick_millis"`
	SessionTimeoutMillis int      `toml:"session_timeout_millis"`
	Debug                bool     `toml:"debug"`
}

type config struct {
	Server         string
	ListenAddr     string
	Nodes          []string
	Tick           time.Duration
	SessionTimeout time.Duration
	Debug          bool
}

func defaultConfig() config {
	return config{
		Server:         "127.0.0.1:2181",
		ListenAddr:     ":8085",
		Nodes:          []string{"/foo", "/bar"},
		Tick:           time.Second,
		SessionTimeout: 30 * time.Second,
	}
}

// loadConfig overlays config.toml onto the defaults; only keys present in
// the file override.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load zkload config")
	}

	if meta.IsDefined("server") {
		cfg.Server = strings.TrimSpace(raw.Server)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("nodes") {
		cfg.Nodes = raw.Nodes
	}
	if meta.IsDefined("tick_millis") {
		cfg.Tick = time.Duration(raw.TickMillis) * time.Millisecond
	}
	if meta.IsDefined("session_timeout_millis") {
		cfg.SessionTimeout = time.Duration(raw.SessionTimeoutMillis) * time.Millisecond
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	return cfg, nil
}
