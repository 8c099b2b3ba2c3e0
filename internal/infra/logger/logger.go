package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New dev: цветной консольный вывод с debug, иначе JSON с info.
func New(env string) *zap.Logger {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log.With(zap.String("env", env))
}
