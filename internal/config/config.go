// Package config loads the settings of the chessanalysis command from a
// file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// EnvPrefix prefixes environment variables, e.g. CHESSANALYSIS_ANALYSIS_DEPTH.
const EnvPrefix = "CHESSANALYSIS"

// Oracle modes.
const (
	ModeEngine = "engine"
	ModeEvalDB = "evaldb"
	ModeHybrid = "hybrid"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendRedis  = "redis"
)

// Config is the complete configuration.
type Config struct {
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    StoreConfig    `mapstructure:"cache"`
	EvalDB   StoreConfig    `mapstructure:"evaldb"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// OracleConfig selects and tunes the evaluation oracle.
type OracleConfig struct {
	// Mode is "engine", "evaldb" or "hybrid" (database first, engine second).
	Mode             string        `mapstructure:"mode"`
	EnginePath       string        `mapstructure:"engine_path"`
	EngineArgs       []string      `mapstructure:"engine_args"`
	Threads          int           `mapstructure:"threads"`
	HashMB           int           `mapstructure:"hash_mb"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// AnalysisConfig holds analysis defaults.
type AnalysisConfig struct {
	Depth   int           `mapstructure:"depth"`
	MultiPV int           `mapstructure:"multipv"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Book enables opening recognition.
	Book bool `mapstructure:"book"`
}

// StoreConfig describes a key/value store.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Codec    string `mapstructure:"codec"`
	Size     int    `mapstructure:"size"`
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds synchronous evaluations.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Trackers       int           `mapstructure:"trackers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"oracle.mode":              ModeEngine,
	"oracle.engine_path":       "stockfish",
	"oracle.threads":           1,
	"oracle.hash_mb":           64,
	"oracle.handshake_timeout": 10 * time.Second,

	"analysis.depth":   14,
	"analysis.multipv": 2,
	"analysis.timeout": 10 * time.Minute,
	"analysis.book":    true,

	"cache.backend": BackendMemory,
	"cache.codec":   "zstd",
	"cache.size":    256,
	"cache.dir":     "./reports",

	"evaldb.backend": BackendDisk,
	"evaldb.codec":   "zstd",
	"evaldb.dir":     "./data",
	"evaldb.size":    64,

	"server.addr":             ":8080",
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 15 * time.Second,
	"server.request_timeout":  time.Minute,
	"server.trackers":         1024,

	"log.level":       "info",
	"log.development": false,
}

// storeKeys default to zero values. They are registered so the
// environment can set them.
var storeKeys = map[string]any{
	"bucket":         "",
	"prefix":         "",
	"region":         "",
	"endpoint":       "",
	"redis_addr":     "",
	"redis_password": "",
	"redis_db":       0,
	"ttl":            time.Duration(0),
}

// FlagKeys maps command-line flag names to configuration keys. Flags that
// were set on the command line override the file and the environment.
var FlagKeys = map[string]string{
	"engine":   "oracle.engine_path",
	"mode":     "oracle.mode",
	"threads":  "oracle.threads",
	"hash":     "oracle.hash_mb",
	"depth":    "analysis.depth",
	"multipv":  "analysis.multipv",
	"timeout":  "analysis.timeout",
	"cache":    "cache.backend",
	"data-dir": "evaldb.dir",
	"addr":     "server.addr",
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, section := range []string{"cache", "evaldb"} {
		for k, val := range storeKeys {
			v.SetDefault(section+"."+k, val)
		}
	}
	v.SetDefault("oracle.engine_args", []string{})
	return v
}

// Load reads the configuration. path names a config file; when empty,
// chessanalysis.{yaml,json,toml} is looked up in the working directory
// and $HOME/.config/chessanalysis, and its absence is not an error.
// Environment variables override the file and flags, when not nil,
// override both.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("chessanalysis")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chessanalysis")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Oracle.Mode {
	case ModeEngine, ModeHybrid:
		if c.Oracle.EnginePath == "" {
			errs = append(errs, fmt.Errorf("oracle.engine_path is required in %s mode", c.Oracle.Mode))
		}
	case ModeEvalDB:
	default:
		errs = append(errs, fmt.Errorf("oracle.mode %q is not one of engine, evaldb, hybrid", c.Oracle.Mode))
	}
	if c.Analysis.Depth < 1 || c.Analysis.Depth > oracle.MaxDepth {
		errs = append(errs, fmt.Errorf("analysis.depth %d is outside 1..%d", c.Analysis.Depth, oracle.MaxDepth))
	}
	if c.Analysis.MultiPV < 1 || c.Analysis.MultiPV > oracle.MaxMultiPV {
		errs = append(errs, fmt.Errorf("analysis.multipv %d is outside 1..%d", c.Analysis.MultiPV, oracle.MaxMultiPV))
	}
	if c.Server.Trackers < 1 {
		errs = append(errs, errors.New("server.trackers must be positive"))
	}
	if err := c.Cache.validate("cache"); err != nil {
		errs = append(errs, err)
	}
	if c.Oracle.Mode != ModeEngine {
		if err := c.EvalDB.validate("evaldb"); err != nil {
			errs = append(errs, err)
		}
		if c.EvalDB.Backend == BackendMemory {
			errs = append(errs, errors.New("evaldb.backend cannot be memory"))
		}
	}
	return errors.Join(errs...)
}

func (s StoreConfig) validate(section string) error {
	switch s.Backend {
	case BackendMemory:
		if s.Size < 1 {
			return fmt.Errorf("%s.size must be positive", section)
		}
	case BackendDisk:
		if s.Dir == "" {
			return fmt.Errorf("%s.dir is required for the disk backend", section)
		}
	case BackendGCS, BackendS3:
		if s.Bucket == "" {
			return fmt.Errorf("%s.bucket is required for the %s backend", section, s.Backend)
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("%s.redis_addr is required for the redis backend", section)
		}
	default:
		return fmt.Errorf("%s.backend %q is not one of memory, disk, gcs, s3, redis", section, s.Backend)
	}
	return nil
}
