package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the top-level configuration tree.
type Config struct {
	Application *Application  `mapstructure:"application"`
	Logger      *Logger       `mapstructure:"logger"`
	Upload      *UploadConfig `mapstructure:"upload"`
}

var AppConfig = &Config{
	Application: ApplicationConfig,
	Logger:      LoggerConfig,
	Upload:      UploadConfigInstance,
}

// Setup reads the YAML configuration file into AppConfig. Environment
// overrides for operational knobs are applied afterwards.
func Setup(configYml string) error {
	v := viper.New()
	v.SetConfigFile(configYml)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configYml, err)
	}

	if err := v.Unmarshal(AppConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config file %s: %w", configYml, err)
	}

	AppConfig.Upload.ApplyDefaults()
	AppConfig.Upload.ApplyEnvOverrides()

	return nil
}
