// High level log wrapper, so it can output different log based on level.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevel() or log.SetLevelByString()
// - set environment variable `LOG_LEVEL`
// - call log.Init() with a level and an optional rotating log file

package log

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel = zapcore.Level

const (
	LOG_LEVEL_FATAL = zapcore.FatalLevel
	LOG_LEVEL_ERROR = zapcore.ErrorLevel
	LOG_LEVEL_WARN  = zapcore.WarnLevel
	LOG_LEVEL_INFO  = zapcore.InfoLevel
	LOG_LEVEL_DEBUG = zapcore.DebugLevel
	LOG_LEVEL_ALL   = LOG_LEVEL_DEBUG
)

// FileConfig describes a rotating log file.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxDays    int
}

// Config is consumed by Init.
type Config struct {
	Level string
	File  FileConfig
}

var _log *Logger = New()

func GlobalLogger() *zap.Logger {
	return _log.base
}

// Init replaces the global logger with one built from cfg.
func Init(cfg Config) error {
	var w io.Writer = os.Stderr
	if cfg.File.Filename != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxDays,
		}
	}
	l := NewLogger(w, "")
	if cfg.Level != "" {
		l.SetLevelByString(cfg.Level)
	}
	_log = l
	return nil
}

func SetLevel(level LogLevel) {
	_log.SetLevel(level)
}

func GetLogLevel() LogLevel {
	return _log.level.Level()
}

func Info(v ...interface{}) {
	_log.Info(v...)
}

func Infof(format string, v ...interface{}) {
	_log.Infof(format, v...)
}

func Panic(v ...interface{}) {
	_log.Panic(v...)
}

func Panicf(format string, v ...interface{}) {
	_log.Panicf(format, v...)
}

func Debug(v ...interface{}) {
	_log.Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	_log.Debugf(format, v...)
}

func Warn(v ...interface{}) {
	_log.Warning(v...)
}

func Warnf(format string, v ...interface{}) {
	_log.Warningf(format, v...)
}

func Warning(v ...interface{}) {
	_log.Warning(v...)
}

func Warningf(format string, v ...interface{}) {
	_log.Warningf(format, v...)
}

func Error(v ...interface{}) {
	_log.Error(v...)
}

func Errorf(format string, v ...interface{}) {
	_log.Errorf(format, v...)
}

func Fatal(v ...interface{}) {
	_log.Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	_log.Fatalf(format, v...)
}

func SetLevelByString(level string) {
	_log.SetLevelByString(level)
}

// Sync flushes buffered output of the global logger.
func Sync() error {
	return _log.sugar.Sync()
}

type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level)
}

func (l *Logger) SetLevelByString(level string) {
	l.level.SetLevel(StringToLogLevel(level))
}

func (l *Logger) Fatal(v ...interface{}) {
	l.sugar.Fatal(v...)
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

func (l *Logger) Panic(v ...interface{}) {
	l.sugar.Panic(v...)
}

func (l *Logger) Panicf(format string, v ...interface{}) {
	l.sugar.Panicf(format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.sugar.Error(v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *Logger) Warning(v ...interface{}) {
	l.sugar.Warn(v...)
}

func (l *Logger) Warningf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *Logger) Debug(v ...interface{}) {
	l.sugar.Debug(v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.sugar.Info(v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func StringToLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "fatal":
		return LOG_LEVEL_FATAL
	case "error":
		return LOG_LEVEL_ERROR
	case "warn", "warning":
		return LOG_LEVEL_WARN
	case "debug":
		return LOG_LEVEL_DEBUG
	case "info":
		return LOG_LEVEL_INFO
	}
	return LOG_LEVEL_ALL
}

func New() *Logger {
	return NewLogger(os.Stderr, "")
}

// NewLogger builds a console logger writing to w. A non-empty prefix is
// attached to every entry as the logger name.
func NewLogger(w io.Writer, prefix string) *Logger {
	level := zap.NewAtomicLevelAt(LOG_LEVEL_INFO)
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		level.SetLevel(StringToLogLevel(l))
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if prefix != "" {
		base = base.Named(prefix)
	}
	return &Logger{base: base, sugar: base.Sugar(), level: level}
}
