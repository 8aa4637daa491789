package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk/flag configuration surface for auditd. The audit
// package itself never reads a config file or a flag; this process is
// where the outside world's configuration is translated into audit.Config.
type Config struct {
	NodeID          string `yaml:"node_id"`
	Mode            string `yaml:"mode"` // "raft" or "pbft"
	MemoryCeiling   int    `yaml:"memory_ceiling"`
	MonitorEndpoint string `yaml:"monitor_endpoint"`

	LeaderAliveTimeout    time.Duration `yaml:"leader_alive_timeout"`
	PrimaryAliveTimeout   time.Duration `yaml:"primary_alive_timeout"`
	LeaderProgressTimeout time.Duration `yaml:"leader_progress_timeout"`

	ListenUDP string `yaml:"listen_udp"` // out-of-process delivery listener, optional
	HTTPAddr  string `yaml:"http_addr"`  // Prometheus + health HTTP surface
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`

	RaftDemo bool `yaml:"raft_demo"` // bootstrap a single-node raft.Raft and bridge its observations in
}

func defaultConfig() Config {
	return Config{
		Mode:                  "raft",
		MemoryCeiling:         10000,
		LeaderAliveTimeout:    20 * time.Second,
		PrimaryAliveTimeout:   20 * time.Second,
		LeaderProgressTimeout: 20 * time.Second,
		HTTPAddr:              ":9090",
		LogLevel:              "info",
	}
}

func loadConfigFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
