package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLive        Mode = "live"
	ModeReplay      Mode = "replay"
	ModePassthrough Mode = "passthrough"
)

type CacheKind string

const (
	CacheMemory CacheKind = "memory"
	CacheDisk   CacheKind = "disk"
	CacheRedis  CacheKind = "redis"
)

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type CacheConfig struct {
	Kind        CacheKind   `yaml:"kind"`
	Dir         string      `yaml:"dir"`
	FolderDepth int         `yaml:"folder_depth"`
	Redis       RedisConfig `yaml:"redis"`
}

type Config struct {
	Addr             string      `yaml:"addr"`
	Mode             Mode        `yaml:"mode"`
	Driver           string      `yaml:"driver"`
	ConnectionString string      `yaml:"connection_string"`
	LogLevel         string      `yaml:"log_level"`
	Cache            CacheConfig `yaml:"cache"`
}

func DefaultConfig() Config {
	return Config{
		Addr:   ":6033",
		Mode:   ModeLive,
		Driver: "sqlite3",
		Cache: CacheConfig{
			Kind:        CacheMemory,
			Dir:         "sqlreplay-cache",
			FolderDepth: 2,
			Redis:       RedisConfig{Addr: "localhost:6379"},
		},
	}
}

// LoadConfig reads path over the defaults. An empty path gives the defaults.
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	if path == "" {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrap(err, "reading config")
		return
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		err = errors.Wrapf(err, "parsing config %q", path)
	}
	return
}

func (me *Config) Validate() error {
	switch me.Mode {
	case ModeLive, ModeReplay, ModePassthrough:
	default:
		return fmt.Errorf("unknown mode %q", me.Mode)
	}
	switch me.Cache.Kind {
	case CacheMemory, CacheRedis:
	case CacheDisk:
		if me.Cache.Dir == "" {
			return errors.New("disk cache needs a dir")
		}
		if me.Cache.FolderDepth < 1 {
			return fmt.Errorf("cache folder depth must be at least 1, got %d", me.Cache.FolderDepth)
		}
	default:
		return fmt.Errorf("unknown cache kind %q", me.Cache.Kind)
	}
	if me.Mode != ModeReplay && me.Driver == "" {
		return fmt.Errorf("%s mode needs a driver", me.Mode)
	}
	if me.Addr == "" {
		return errors.New("no listen address")
	}
	return nil
}
