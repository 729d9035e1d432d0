package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// nop until Init, so packages used from tests never log through nil.
var log = zap.NewNop().Sugar()

// Init installs the process logger. "debug" gets the human readable
// development encoder, anything else the production JSON one.
func Init(level string) {
	var (
		l   *zap.Logger
		err error
	)
	if strings.EqualFold(level, "debug") {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		lvl, perr := zapcore.ParseLevel(level)
		if perr != nil {
			lvl = zapcore.InfoLevel
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		l, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

func Sync() {
	_ = log.Sync()
}

func Debug(msg string, kv ...interface{}) {
	log.Debugw(msg, kv...)
}

func Info(msg string, kv ...interface{}) {
	log.Infow(msg, kv...)
}

func Warn(msg string, kv ...interface{}) {
	log.Warnw(msg, kv...)
}

func Error(msg string, kv ...interface{}) {
	log.Errorw(msg, kv...)
}
