package utils

import (
	"os"
	"strconv"
	"strings"

	"ffnet/nn"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds training configuration
type Config struct {
	Topology     nn.Topology `yaml:"-"`
	Architecture string      `yaml:"topology"`
	LearningRate float64     `yaml:"learning_rate"`
	Iterations   int         `yaml:"iterations"`
	Seed         uint64      `yaml:"seed"`
	DataPath     string      `yaml:"data"`
	ModelPath    string      `yaml:"model"`
	Verbose      bool        `yaml:"verbose"`
}

// DefaultConfig is used for anything neither the config file nor the flags
// set.
func DefaultConfig() Config {
	return Config{
		Topology:     nn.Topology{Input: 2, Hidden: 8, Output: 1},
		Architecture: "2 8 1",
		LearningRate: 0.1,
		Iterations:   40000,
		Seed:         1,
		ModelPath:    "brain.dat",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal config")
	}
	if config.Topology, err = ParseTopology(config.Architecture); err != nil {
		return config, err
	}
	return config, nil
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing layer %d of %q", i, archStr)
		}
		arch[i] = n
	}
	return arch, nil
}

// ParseTopology parses "input hidden output", separated by spaces or commas.
func ParseTopology(archStr string) (nn.Topology, error) {
	arch, err := ParseArchitecture(archStr)
	if err != nil {
		return nn.Topology{}, err
	}
	if len(arch) != 3 {
		return nn.Topology{}, errors.Errorf("architecture must have exactly 3 layers, got %d", len(arch))
	}
	t := nn.Topology{Input: arch[0], Hidden: arch[1], Output: arch[2]}
	return t, t.Validate()
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if err := config.Topology.Validate(); err != nil {
		return err
	}
	if config.LearningRate < 0 {
		return errors.New("learning rate must not be negative")
	}
	if config.Iterations <= 0 {
		return errors.New("iterations must be positive")
	}
	if config.ModelPath == "" {
		return errors.New("model path must be set")
	}
	return nil
}
