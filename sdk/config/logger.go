package config

type Logger struct {
	Path        string `mapstructure:"path"`        // log file directory
	Level       string `mapstructure:"level"`       // debug, info, warn, error
	Stdout      bool   `mapstructure:"stdout"`      // mirror to console
	FileOutput  bool   `mapstructure:"fileoutput"`  // write rotated files
	MaxSize     int    `mapstructure:"maxsize"`     // MB per file, 50 is typical
	InfoMaxAge  int    `mapstructure:"infomaxage"`  // days to keep info logs
	ErrorMaxAge int    `mapstructure:"errormaxage"` // days to keep error logs
	MaxBackups  int    `mapstructure:"maxbackups"`  // rotated files to keep
}

var LoggerConfig = new(Logger)
