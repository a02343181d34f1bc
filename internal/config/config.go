package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input      InputConfig   `yaml:"input" mapstructure:"input"`
	Horizon    HorizonConfig `yaml:"horizon" mapstructure:"horizon"`
	BGNBD      ModelConfig   `yaml:"bgnbd" mapstructure:"bgnbd"`
	GammaGamma ModelConfig   `yaml:"gammagamma" mapstructure:"gammagamma"`
	Output     OutputConfig  `yaml:"output" mapstructure:"output"`
	Store      StoreConfig   `yaml:"store" mapstructure:"store"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig selects the transaction source.
type InputConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	Format    string `yaml:"format" mapstructure:"format"` // auto, csv, or xlsx
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`   // XLSX sheet name; first sheet when empty
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
}

// HorizonConfig sets the future prediction window.
type HorizonConfig struct {
	Months float64 `yaml:"months" mapstructure:"months"`
}

// ModelConfig tunes one model fitter.
type ModelConfig struct {
	Penalizer     float64 `yaml:"penalizer" mapstructure:"penalizer"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// OutputConfig configures the prediction export.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	TopN int    `yaml:"top_n" mapstructure:"top_n"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"` // sqlite file path
}

// DSN returns the driver-appropriate connection string.
func (s StoreConfig) DSN() string {
	if s.Driver == "sqlite" {
		return s.Path
	}
	return s.DatabaseURL
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.format", "auto")
	v.SetDefault("horizon.months", 6.0)
	v.SetDefault("bgnbd.penalizer", 0.1)
	v.SetDefault("bgnbd.max_iterations", 10000)
	v.SetDefault("gammagamma.penalizer", 0.1)
	v.SetDefault("gammagamma.max_iterations", 10000)
	v.SetDefault("output.path", "clv_predictions.csv")
	v.SetDefault("output.top_n", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "clv.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
