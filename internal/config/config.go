package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Predictor  PredictorConfig  `mapstructure:"predictor"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CompletionSweep string `mapstructure:"completion_sweep"`
}

type CacheConfig struct {
	Kind  string           `mapstructure:"kind"`
	TTL   time.Duration    `mapstructure:"ttl"`
	Redis CacheRedisConfig `mapstructure:"redis"`
}

type CacheRedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PredictorConfig struct {
	DefaultDailyRevenue float64 `mapstructure:"default_daily_revenue"`
	ChangeCostPerSlot   float64 `mapstructure:"change_cost_per_slot"`
}

type RiskConfig struct {
	HighPerformerThreshold float64 `mapstructure:"high_performer_threshold"`
	PoorPlacementThreshold float64 `mapstructure:"poor_placement_threshold"`
	NewProductLimit        int     `mapstructure:"new_product_limit"`
}

type ExperimentConfig struct {
	ConfidenceLevel         float64 `mapstructure:"confidence_level"`
	MinimumDetectableEffect float64 `mapstructure:"minimum_detectable_effect"`
	AllocationRatio         float64 `mapstructure:"allocation_ratio"`
	DefaultDurationDays     int     `mapstructure:"default_duration_days"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.completion_sweep", "@every 10m")
	v.SetDefault("cache.kind", "memory")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("predictor.default_daily_revenue", 3.0)
	v.SetDefault("predictor.change_cost_per_slot", 25.0)
	v.SetDefault("risk.high_performer_threshold", 10.0)
	v.SetDefault("risk.poor_placement_threshold", 8.0)
	v.SetDefault("risk.new_product_limit", 3)
	v.SetDefault("experiment.confidence_level", 0.95)
	v.SetDefault("experiment.minimum_detectable_effect", 0.05)
	v.SetDefault("experiment.allocation_ratio", 0.5)
	v.SetDefault("experiment.default_duration_days", 14)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
