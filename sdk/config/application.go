package config

// Application carries process-level settings.
type Application struct {
	Mode string `mapstructure:"mode" json:"mode"`
	Name string `mapstructure:"name" json:"name"`
}

var ApplicationConfig = new(Application)
