// Package config 加载并监听服务配置
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config 服务配置
type Config struct {
	HTTP struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`

	Redis struct {
		// URL为空时使用进程内降级缓存
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Cache struct {
		MemoryMaxEntries int `yaml:"memory_max_entries"`
	} `yaml:"cache"`

	Tushare struct {
		Token string `yaml:"token"`
	} `yaml:"tushare"`

	DataSource struct {
		Default string `yaml:"default"`
	} `yaml:"datasource"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Kline struct {
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"kline"`
}

// Load reads the YAML config at path and applies environment overrides.
// REDIS_URL and TUSHARE_TOKEN always win over the file so secrets stay
// out of version control.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Default returns a config with baseline values, usable without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		c.Tushare.Token = v
	}
}

func (c *Config) fillDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 30
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.MemoryMaxEntries == 0 {
		c.Cache.MemoryMaxEntries = 2000
	}
	if c.DataSource.Default == "" {
		c.DataSource.Default = "eastmoney"
	}
	if c.Database.Path == "" {
		c.Database.Path = "finassist.db"
	}
	if c.Kline.DefaultLimit == 0 {
		c.Kline.DefaultLimit = 500
	}
	if c.Kline.MaxLimit == 0 {
		c.Kline.MaxLimit = 1000
	}
}
