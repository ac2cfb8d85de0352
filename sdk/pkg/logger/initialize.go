package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	toolsConfig "github.com/DiDuV5/cosv5-core/sdk/config"
)

type LogConfig struct {
	Path          string `yaml:"path"`
	ConsoleOutput bool   `yaml:"console_output"`
	Level         string `yaml:"level"`
	FileOutput    bool   `yaml:"file_output"`
	MaxSize       int    `yaml:"max_size"`
	InfoMaxAge    int    `yaml:"info_max_age"`
	ErrorMaxAge   int    `yaml:"error_max_age"`
	MaxBackups    int    `yaml:"max_backups"`
	Compress      bool   `yaml:"compress"`
}

// Setup initializes the global loggers from sdk/config. Call once before
// the application starts serving; until then the globals are no-ops.
func Setup() {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	config := LogConfig{
		Path:          toolsConfig.LoggerConfig.Path,
		ConsoleOutput: toolsConfig.LoggerConfig.Stdout,
		Level:         toolsConfig.LoggerConfig.Level,
		FileOutput:    toolsConfig.LoggerConfig.FileOutput,
		MaxSize:       toolsConfig.LoggerConfig.MaxSize,
		InfoMaxAge:    toolsConfig.LoggerConfig.InfoMaxAge,
		ErrorMaxAge:   toolsConfig.LoggerConfig.ErrorMaxAge,
		MaxBackups:    toolsConfig.LoggerConfig.MaxBackups,
		Compress:      true,
	}

	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(config.Level)); err != nil {
		logLevel = zapcore.InfoLevel
	}

	var cores []zapcore.Core

	if config.FileOutput {
		// Info and error streams rotate independently; errors are kept longer.
		if logLevel <= zapcore.InfoLevel {
			infoCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				getLogWriter(config.Path+"/info.log", config.MaxSize, config.MaxBackups, config.InfoMaxAge, config.Compress),
				zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
					return lvl >= logLevel && lvl < zapcore.ErrorLevel
				}),
			)
			cores = append(cores, infoCore)
		}

		errorCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			getLogWriter(config.Path+"/error.log", config.MaxSize, config.MaxBackups, config.ErrorMaxAge, config.Compress),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}),
		)
		cores = append(cores, errorCore)
	}

	if config.ConsoleOutput {
		consoleEncoderConfig := encoderConfig
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= logLevel
			}),
		)
		cores = append(cores, consoleCore)
	}

	if len(cores) == 0 {
		// Keep a discard core so the globals never panic.
		nullCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(io.Discard),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return false }),
		)
		cores = append(cores, nullCore)
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	DefaultLogger = Logger.Sugar()
}

func getLogWriter(filename string, maxSize, maxBackups, maxAge int, compress bool) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   compress,
	})
}
