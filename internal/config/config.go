// Package config loads noteseg settings from config.yaml, NOTESEG_ env vars
// and defaults, and builds the application logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/noteseg/internal/labels"
)

// Config holds the full application configuration.
type Config struct {
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Model ModelConfig `yaml:"model" mapstructure:"model"`
	Train TrainConfig `yaml:"train" mapstructure:"train"`
	Eval  EvalConfig  `yaml:"eval" mapstructure:"eval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	// File additionally receives every log line when set.
	File string `yaml:"file" mapstructure:"file"`
}

// StoreConfig configures the run history database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ModelConfig selects and parameterizes the classifier backend.
type ModelConfig struct {
	Backend       string       `yaml:"backend" mapstructure:"backend"`
	Base          string       `yaml:"base" mapstructure:"base"`
	TokenizerPath string       `yaml:"tokenizer_path" mapstructure:"tokenizer_path"`
	MaxLength     int          `yaml:"max_length" mapstructure:"max_length"`
	FeatureDim    int          `yaml:"feature_dim" mapstructure:"feature_dim"`
	PadToken      string       `yaml:"pad_token" mapstructure:"pad_token"`
	Triton        TritonConfig `yaml:"triton" mapstructure:"triton"`
}

// TritonConfig points at a KServe v2 inference server.
type TritonConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	ModelName   string `yaml:"model_name" mapstructure:"model_name"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// RateLimit caps inference requests per second. Zero is unlimited.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// TrainConfig configures the fine-tuning command.
type TrainConfig struct {
	DataPath          string   `yaml:"data_path" mapstructure:"data_path"`
	SavePath          string   `yaml:"savepath" mapstructure:"savepath"`
	LabelNames        []string `yaml:"label_names" mapstructure:"label_names"`
	Device            string   `yaml:"device" mapstructure:"device"`
	Epochs            int      `yaml:"n_epochs" mapstructure:"n_epochs"`
	BatchSize         int      `yaml:"batch_size" mapstructure:"batch_size"`
	NumWorkers        int      `yaml:"num_workers" mapstructure:"num_workers"`
	LearningRate      float64  `yaml:"learning_rate" mapstructure:"learning_rate"`
	TrainRatio        float64  `yaml:"train_ratio" mapstructure:"train_ratio"`
	ValidRatio        float64  `yaml:"valid_ratio" mapstructure:"valid_ratio"`
	BayesianBootstrap bool     `yaml:"bayesian_bootstrap" mapstructure:"bayesian_bootstrap"`
	ShuffleSeed       uint64   `yaml:"shuffle_seed" mapstructure:"shuffle_seed"`
	SplitSeed         uint64   `yaml:"split_seed" mapstructure:"split_seed"`
	BootstrapSeed     uint64   `yaml:"bootstrap_seed" mapstructure:"bootstrap_seed"`
	BootstrapSamples  int      `yaml:"bootstrap_samples" mapstructure:"bootstrap_samples"`
}

// EvalConfig configures the evaluation command.
type EvalConfig struct {
	ModelDir            string   `yaml:"model_dir" mapstructure:"model_dir"`
	DataPath            string   `yaml:"data_path" mapstructure:"data_path"`
	LabelNames          []string `yaml:"label_names" mapstructure:"label_names"`
	BatchSize           int      `yaml:"batch_size" mapstructure:"batch_size"`
	NumWorkers          int      `yaml:"num_workers" mapstructure:"num_workers"`
	Output              string   `yaml:"output" mapstructure:"output"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// Validation scopes.
const (
	ScopeTrain = "train"
	ScopeEval  = "eval"
)

// Backends.
const (
	BackendBag    = "bag"
	BackendTriton = "triton"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NOTESEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("store.path", "")
	v.SetDefault("model.backend", BackendBag)
	v.SetDefault("model.base", "")
	v.SetDefault("model.tokenizer_path", "tokenizer.json")
	v.SetDefault("model.max_length", 512)
	v.SetDefault("model.feature_dim", 1<<14)
	v.SetDefault("model.pad_token", "[PAD]")
	v.SetDefault("model.triton.url", "http://localhost:8000")
	v.SetDefault("model.triton.model_name", "binary_note_seg_model")
	v.SetDefault("model.triton.timeout_secs", 30)
	v.SetDefault("model.triton.rate_limit", 0)
	v.SetDefault("train.data_path", "data/training_data.csv")
	v.SetDefault("train.savepath", "")
	v.SetDefault("train.label_names", []string{})
	v.SetDefault("train.device", "cpu")
	v.SetDefault("train.n_epochs", 10)
	v.SetDefault("train.batch_size", 16)
	v.SetDefault("train.num_workers", 4)
	v.SetDefault("train.learning_rate", 2e-5)
	v.SetDefault("train.train_ratio", 0.6)
	v.SetDefault("train.valid_ratio", 0.2)
	v.SetDefault("train.bayesian_bootstrap", false)
	v.SetDefault("train.shuffle_seed", 123)
	v.SetDefault("train.split_seed", 42)
	v.SetDefault("train.bootstrap_seed", 429)
	v.SetDefault("train.bootstrap_samples", 1000)
	v.SetDefault("eval.model_dir", "trained/binary_note_seg_model")
	v.SetDefault("eval.data_path", "data/pilot/val_processed_data.csv")
	v.SetDefault("eval.label_names", []string{})
	v.SetDefault("eval.batch_size", 16)
	v.SetDefault("eval.num_workers", 4)
	v.SetDefault("eval.output", "data/misclassified_examples.csv")
	v.SetDefault("eval.similarity_threshold", 0.9)

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

// Validate checks the settings used by the given scope.
func (c *Config) Validate(scope string) error {
	if c.Model.MaxLength <= 0 {
		return labels.NewConfigurationError("model.max_length must be positive (got %d)", c.Model.MaxLength)
	}
	switch c.Model.Backend {
	case BackendBag, BackendTriton:
	default:
		return labels.NewConfigurationError("unknown model.backend %q", c.Model.Backend)
	}

	switch scope {
	case ScopeTrain:
		t := c.Train
		if c.Model.Backend != BackendBag {
			return labels.NewConfigurationError("backend %q cannot be trained", c.Model.Backend)
		}
		if t.Epochs <= 0 {
			return labels.NewConfigurationError("train.n_epochs must be positive (got %d)", t.Epochs)
		}
		if t.BatchSize <= 0 {
			return labels.NewConfigurationError("train.batch_size must be positive (got %d)", t.BatchSize)
		}
		if t.TrainRatio < 0 || t.TrainRatio > 1 || t.ValidRatio < 0 || t.ValidRatio > 1 {
			return labels.NewConfigurationError("split ratios must be in [0, 1] (train=%g valid=%g)", t.TrainRatio, t.ValidRatio)
		}
		if t.TrainRatio+t.ValidRatio > 1 {
			return labels.NewConfigurationError("train.train_ratio + train.valid_ratio exceeds 1 (%g)", t.TrainRatio+t.ValidRatio)
		}
		if t.BayesianBootstrap && t.BootstrapSamples <= 0 {
			return labels.NewConfigurationError("train.bootstrap_samples must be positive (got %d)", t.BootstrapSamples)
		}
	case ScopeEval:
		e := c.Eval
		if e.BatchSize <= 0 {
			return labels.NewConfigurationError("eval.batch_size must be positive (got %d)", e.BatchSize)
		}
		if e.SimilarityThreshold < 0 || e.SimilarityThreshold > 1 {
			return labels.NewConfigurationError("eval.similarity_threshold must be in [0, 1] (got %g)", e.SimilarityThreshold)
		}
		if e.ModelDir == "" {
			return labels.NewConfigurationError("eval.model_dir is required")
		}
	default:
		return eris.Errorf("config: unknown scope %q", scope)
	}
	return nil
}

// NewLogger builds a logger from cfg. Console output goes to stdout with
// capital colored levels; when File is set, lines are also appended to that
// file with plain levels.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.OutputPaths = []string{"stdout"}
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	var opts []zap.Option
	if cfg.File != "" {
		fileCore, err := newFileCore(cfg.File, zapCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

// newFileCore appends to path using zapCfg's encoding without color codes.
func newFileCore(path string, zapCfg zap.Config) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "config: create log dir")
	}
	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "config: open log file")
	}

	encCfg := zapCfg.EncoderConfig
	var enc zapcore.Encoder
	if zapCfg.Encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewCore(enc, sink, zapCfg.Level), nil
}
