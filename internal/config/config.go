package config

import (
	"errors"
	"os"
	"strings"
)

import (
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerCfg holds the HTTP API settings.
type ServerCfg struct {
	HTTPAddr          string  `yaml:"httpAddr"`          // listen address, e.g. ":8080"
	ReadHeaderTimeout int     `yaml:"readHeaderTimeout"` // seconds
	ShutdownTimeout   int     `yaml:"shutdownTimeout"`   // seconds
	MaxBodyBytes      int64   `yaml:"maxBodyBytes"`      // request body cap for /v1/loads
	ClientRPS         float64 `yaml:"clientRps"`         // per-client request rate (<=0 disables)
	ClientBurst       int     `yaml:"clientBurst"`       // per-client burst
	GlobalQPS         float64 `yaml:"globalQps"`         // sentinel flow threshold for /v1/loads (<=0 disables)
	TrustForwarded    bool    `yaml:"trustForwarded"`    // identify callers by X-Forwarded-For
}

// RedisCfg holds the audit stream connection.
type RedisCfg struct {
	Addr           string `yaml:"addr"`           // e.g. "127.0.0.1:6379"
	Password       string `yaml:"password"`       // optional
	DB             int    `yaml:"db"`             // DB index
	Prefix         string `yaml:"prefix"`         // key prefix
	StreamMaxLen   int64  `yaml:"streamMaxLen"`   // approximate cap per stream (0 = unbounded)
	PoolSize       int    `yaml:"poolSize"`       // connection pool size
	DialTimeoutMs  int    `yaml:"dialTimeoutMs"`  // dial timeout (ms)
	ReadTimeoutMs  int    `yaml:"readTimeoutMs"`  // read timeout (ms)
	WriteTimeoutMs int    `yaml:"writeTimeoutMs"` // write timeout (ms)
}

// Features toggles optional behaviour.
type Features struct {
	Audit         string `yaml:"audit"`         // "redis_stream" | "none"
	SkipMalformed bool   `yaml:"skipMalformed"` // drop bad input lines instead of aborting
}

// AuditEnabled reports whether decisions are mirrored to Redis.
func (f Features) AuditEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(f.Audit), "redis_stream")
}

// LogCfg configures zerolog.
type LogCfg struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// EngineCfg tunes evaluation. Velocity limits are not configurable.
type EngineCfg struct {
	Shards int `yaml:"shards"` // customer partitions evaluated in parallel
}

// Config is the full configuration tree.
type Config struct {
	Server   ServerCfg `yaml:"server"`
	Redis    RedisCfg  `yaml:"redis"`
	Features Features  `yaml:"features"`
	Log      LogCfg    `yaml:"log"`
	Engine   EngineCfg `yaml:"engine"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerCfg{
			HTTPAddr:          ":8080",
			ReadHeaderTimeout: 5,
			ShutdownTimeout:   5,
			MaxBodyBytes:      8 << 20,
			ClientRPS:         50,
			ClientBurst:       100,
		},
		Redis: RedisCfg{
			Addr:   "127.0.0.1:6379",
			Prefix: "loads",
		},
		Features: Features{Audit: "none"},
		Log:      LogCfg{Level: "info", Format: "console"},
		Engine:   EngineCfg{Shards: 1},
	}
}

// Load reads a YAML file on top of Default. ${VAR} references are expanded
// after an optional .env in the working directory has been loaded.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(b))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return nil, err
	}
	if c.Engine.Shards < 1 {
		c.Engine.Shards = 1
	}
	return c, nil
}
