package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Planner   PlannerConfig   `yaml:"planner" mapstructure:"planner"`
	Score     ScoreConfig     `yaml:"score" mapstructure:"score"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverpassConfig configures road source. Non-empty OSMFile replaces Overpass API.
type OverpassConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	OSMFile        string        `yaml:"osm_file" mapstructure:"osm_file"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ElevationConfig configures elevation lookups. Empty URL disables slope estimation.
type ElevationConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	CachePath      string        `yaml:"cache_path" mapstructure:"cache_path"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
}

// PipelineConfig selects preset and overrides its values. Zero overrides keep preset values.
type PipelineConfig struct {
	Preset        string        `yaml:"preset" mapstructure:"preset"`
	SegmentLength float64       `yaml:"segment_length" mapstructure:"segment_length"`
	ChunkDistance float64       `yaml:"chunk_distance" mapstructure:"chunk_distance"`
	ChunkSegments int           `yaml:"chunk_segments" mapstructure:"chunk_segments"`
	MatchDistance float64       `yaml:"match_distance" mapstructure:"match_distance"`
	ChunkDelay    time.Duration `yaml:"chunk_delay" mapstructure:"chunk_delay"`
	ElevationWait time.Duration `yaml:"elevation_wait" mapstructure:"elevation_wait"`
	HighwayTags   []string      `yaml:"highway_tags" mapstructure:"highway_tags"`
}

// PlannerConfig configures route planning.
type PlannerConfig struct {
	SnapDistance  float64 `yaml:"snap_distance" mapstructure:"snap_distance"`
	MaxExpansions int     `yaml:"max_expansions" mapstructure:"max_expansions"`
}

// ScoreConfig holds attribute weights. Missing attributes keep default weight.
type ScoreConfig struct {
	Weights map[string]int `yaml:"weights" mapstructure:"weights"`
}

// AnalyzeConfig configures multi-trace analysis.
type AnalyzeConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Load reads configuration from file and environment. Empty path means
// optional grvlfinder.yaml from working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("grvlfinder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("GRVL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.osm_file", "")
	v.SetDefault("overpass.connect_timeout", 15*time.Second)
	v.SetDefault("overpass.read_timeout", 30*time.Second)
	v.SetDefault("overpass.rate_limit", 1.0)
	v.SetDefault("elevation.url", "https://api.open-elevation.com/api/v1/lookup")
	v.SetDefault("elevation.cache_path", "")
	v.SetDefault("elevation.connect_timeout", 15*time.Second)
	v.SetDefault("elevation.read_timeout", 30*time.Second)
	v.SetDefault("elevation.rate_limit", 2.0)
	v.SetDefault("elevation.batch_size", 100)
	v.SetDefault("elevation.batch_delay", 500*time.Millisecond)
	v.SetDefault("pipeline.preset", "balanced")
	v.SetDefault("pipeline.segment_length", 0.0)
	v.SetDefault("pipeline.chunk_distance", 0.0)
	v.SetDefault("pipeline.chunk_segments", 0)
	v.SetDefault("pipeline.match_distance", 0.0)
	v.SetDefault("pipeline.chunk_delay", time.Duration(0))
	v.SetDefault("pipeline.elevation_wait", time.Duration(0))
	v.SetDefault("pipeline.highway_tags", []string{})
	v.SetDefault("planner.snap_distance", 100.0)
	v.SetDefault("planner.max_expansions", 10000)
	v.SetDefault("score.weights", map[string]int{})
	v.SetDefault("analyze.concurrency", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "Can't read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal config")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "Can't build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
