package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader reads the library configuration from a YAML file, with
// environment variable overrides.
type Loader struct {
	configName string
	configType string
	configPath string
	validate   *validator.Validate
}

// NewLoader creates a loader for the given file name, type and folder.
func NewLoader(configName, configType, configPath string) *Loader {
	// Remove the trailing slash if it exists
	configPath = strings.TrimSuffix(configPath, "/")

	return &Loader{
		configName: configName,
		configType: configType,
		configPath: configPath,
		validate:   validator.New(),
	}
}

// Load reads, unmarshals and validates the configuration. Values not
// present in the file keep their defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(l.configName) // Name of configuration file
	v.SetConfigType(l.configType) // Configuration file type
	v.AddConfigPath(l.configPath) // Look for configuration file in the given directory

	// Enable Viper to read environment variables
	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its declared constraints.
func (l *Loader) Validate(cfg *Config) error {
	if err := l.validate.Struct(cfg); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WriteDefaults writes the default configuration as YAML to the given
// path, for bootstrapping new deployments.
func WriteDefaults(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("error marshalling default configuration: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
