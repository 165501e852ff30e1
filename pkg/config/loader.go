package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// configName is the config file name without extension.
const configName = ".shorefilter"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for shorefilter settings.
const envPrefix = "SHOREFILTER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

//go:embed schema.json
var schemaJSON []byte

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	if used := viperCfg.ConfigFileUsed(); used != "" && readErr == nil {
		schemaErr := validateFile(used)
		if schemaErr != nil {
			return nil, schemaErr
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("filter.hampel.window_size", DefaultHampelWindowSize)
	viperCfg.SetDefault("filter.hampel.n_sigma", DefaultHampelNSigma)
	viperCfg.SetDefault("filter.hampel.consistency", DefaultHampelConsistency)
	viperCfg.SetDefault("filter.hampel.max_iterations", DefaultHampelMaxIterations)

	viperCfg.SetDefault("filter.change_rate.quantile", DefaultChangeRateQuantile)
	viperCfg.SetDefault("filter.change_rate.iterations", DefaultChangeRateIterations)

	viperCfg.SetDefault("filter.neighborhood.n_std", DefaultNeighborhoodNStd)
	viperCfg.SetDefault("filter.neighborhood.iterations", DefaultNeighborhoodIterations)
	viperCfg.SetDefault("filter.neighborhood.window_perc", DefaultNeighborhoodWindowPerc)

	viperCfg.SetDefault("filter.wavelet.calibrate", DefaultWaveletCalibrate)
	viperCfg.SetDefault("filter.wavelet.wavelet", DefaultWaveletName)
	viperCfg.SetDefault("filter.wavelet.sigma", DefaultWaveletSigma)

	viperCfg.SetDefault("pipeline.stages", DefaultPipelineStages())
	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.metrics_file", DefaultMetricsFile)
}

// validateFile checks the YAML document at path against the embedded schema.
// An empty document is valid.
func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc any

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if doc == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, path, strings.Join(problems, "; "))
}
