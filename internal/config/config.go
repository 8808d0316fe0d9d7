package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mlgate/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration. Every constant
// the two stages share lives here so tests can override it.
type Config struct {
	Data     DataConfig
	Tracking TrackingConfig
	Training TrainingConfig
	Gate     GateConfig
	Server   ServerConfig
	LogLevel string
}

// DataConfig describes the remote dataset and its local cache
type DataConfig struct {
	URL          string
	CachePath    string
	Name         string
	Target       string
	Delimiter    string
	FetchTimeout time.Duration
}

// TrackingConfig locates the tracking store and the run pointer file
type TrackingConfig struct {
	URI            string
	ExperimentName string
	ArtifactRoot   string // only used by SQL-backed stores
	PointerFile    string
}

// TrainingConfig holds the split and estimator settings
type TrainingConfig struct {
	TestSize   float64
	Seed       int64
	Alpha      float64
	SampleRows int // rows used for the signature sample and input example
}

// GateConfig holds the quality gate settings
type GateConfig struct {
	RMSEThreshold float64
	MetricsFile   string
}

// ServerConfig holds tracking browser settings
type ServerConfig struct {
	Addr    string
	GinMode string
}

const (
	DefaultDataURL       = "https://archive.ics.uci.edu/ml/machine-learning-databases/wine-quality/winequality-red.csv"
	DefaultCachePath     = "data/winequality-red.csv"
	DefaultDatasetName   = "UCI Wine Quality (Red)"
	DefaultTarget        = "quality"
	DefaultExperiment    = "CI-CD-Workshop4"
	DefaultTrackingDir   = "mlruns"
	DefaultPointerFile   = "last_run_id.txt"
	DefaultRMSEThreshold = 0.85
	DefaultTestSize      = 0.2
	DefaultSeed          = 42
	DefaultAlpha         = 1.0
	DefaultFetchTimeout  = 60 * time.Second
)

// Default returns the fixed configuration of the CI workflow.
func Default() *Config {
	trackingDir := DefaultTrackingDir
	if abs, err := filepath.Abs(trackingDir); err == nil {
		trackingDir = abs
	}
	return &Config{
		Data: DataConfig{
			URL:          DefaultDataURL,
			CachePath:    DefaultCachePath,
			Name:         DefaultDatasetName,
			Target:       DefaultTarget,
			Delimiter:    ";",
			FetchTimeout: DefaultFetchTimeout,
		},
		Tracking: TrackingConfig{
			URI:            "file://" + filepath.ToSlash(trackingDir),
			ExperimentName: DefaultExperiment,
			ArtifactRoot:   trackingDir,
			PointerFile:    DefaultPointerFile,
		},
		Training: TrainingConfig{
			TestSize:   DefaultTestSize,
			Seed:       DefaultSeed,
			Alpha:      DefaultAlpha,
			SampleRows: 5,
		},
		Gate: GateConfig{
			RMSEThreshold: DefaultRMSEThreshold,
		},
		Server: ServerConfig{
			Addr:    ":5000",
			GinMode: "release",
		},
		LogLevel: "INFO",
	}
}

// Load reads .env, then MLGATE_* environment variables and an optional
// mlgate.yaml in the working directory, on top of Default().
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err, "failed to read .env")
	}
	return load(os.Getenv("MLGATE_CONFIG"))
}

// LoadFile is Load with an explicit config file.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configFile string) (*Config, error) {
	v := newViper(Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err, fmt.Sprintf("failed to read config file %s", configFile))
		}
	} else {
		v.SetConfigName("mlgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.WithCode(errors.CodeConfigInvalid, err, "failed to read mlgate.yaml")
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func newViper(d *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data.url", d.Data.URL)
	v.SetDefault("data.cache_path", d.Data.CachePath)
	v.SetDefault("data.name", d.Data.Name)
	v.SetDefault("data.target", d.Data.Target)
	v.SetDefault("data.delimiter", d.Data.Delimiter)
	v.SetDefault("data.fetch_timeout", d.Data.FetchTimeout)
	v.SetDefault("tracking.uri", d.Tracking.URI)
	v.SetDefault("tracking.experiment", d.Tracking.ExperimentName)
	v.SetDefault("tracking.artifact_root", d.Tracking.ArtifactRoot)
	v.SetDefault("tracking.pointer_file", d.Tracking.PointerFile)
	v.SetDefault("training.test_size", d.Training.TestSize)
	v.SetDefault("training.seed", d.Training.Seed)
	v.SetDefault("training.alpha", d.Training.Alpha)
	v.SetDefault("training.sample_rows", d.Training.SampleRows)
	v.SetDefault("gate.rmse_threshold", d.Gate.RMSEThreshold)
	v.SetDefault("gate.metrics_file", d.Gate.MetricsFile)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.gin_mode", d.Server.GinMode)
	v.SetDefault("log.level", d.LogLevel)
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Data: DataConfig{
			URL:          v.GetString("data.url"),
			CachePath:    v.GetString("data.cache_path"),
			Name:         v.GetString("data.name"),
			Target:       v.GetString("data.target"),
			Delimiter:    v.GetString("data.delimiter"),
			FetchTimeout: v.GetDuration("data.fetch_timeout"),
		},
		Tracking: TrackingConfig{
			URI:            v.GetString("tracking.uri"),
			ExperimentName: v.GetString("tracking.experiment"),
			ArtifactRoot:   v.GetString("tracking.artifact_root"),
			PointerFile:    v.GetString("tracking.pointer_file"),
		},
		Training: TrainingConfig{
			TestSize:   v.GetFloat64("training.test_size"),
			Seed:       v.GetInt64("training.seed"),
			Alpha:      v.GetFloat64("training.alpha"),
			SampleRows: v.GetInt("training.sample_rows"),
		},
		Gate: GateConfig{
			RMSEThreshold: v.GetFloat64("gate.rmse_threshold"),
			MetricsFile:   v.GetString("gate.metrics_file"),
		},
		Server: ServerConfig{
			Addr:    v.GetString("server.addr"),
			GinMode: v.GetString("server.gin_mode"),
		},
		LogLevel: v.GetString("log.level"),
	}
}

// Validate checks every field the stages rely on
func (c *Config) Validate() error {
	u, err := url.Parse(c.Data.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.ConfigInvalid(fmt.Sprintf("data URL %q must be an absolute http(s) URL", c.Data.URL))
	}
	if c.Data.CachePath == "" {
		return errors.ConfigInvalid("data cache path is required")
	}
	if c.Data.Target == "" {
		return errors.ConfigInvalid("target column is required")
	}
	if len([]rune(c.Data.Delimiter)) != 1 {
		return errors.ConfigInvalid(fmt.Sprintf("delimiter %q must be a single character", c.Data.Delimiter))
	}
	if c.Data.FetchTimeout <= 0 {
		return errors.ConfigInvalid("fetch timeout must be positive")
	}
	if c.Tracking.URI == "" {
		return errors.ConfigInvalid("tracking URI is required")
	}
	if c.Tracking.ExperimentName == "" {
		return errors.ConfigInvalid("experiment name is required")
	}
	if c.Tracking.PointerFile == "" {
		return errors.ConfigInvalid("run pointer file is required")
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("test size %v must be in (0, 1)", c.Training.TestSize))
	}
	if c.Training.Alpha < 0 {
		return errors.ConfigInvalid("regularization strength must not be negative")
	}
	if c.Training.SampleRows <= 0 {
		return errors.ConfigInvalid("sample rows must be positive")
	}
	if c.Gate.RMSEThreshold <= 0 {
		return errors.ConfigInvalid("RMSE threshold must be positive")
	}
	return nil
}

// DelimiterRune returns the CSV field delimiter
func (c DataConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ';'
}
