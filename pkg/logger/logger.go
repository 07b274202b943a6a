package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 确保 BaseLogger 实现了 Logger 接口
var _ Logger = (*BaseLogger)(nil)

// BaseLogger 基于 zap 的日志记录器实现
type BaseLogger struct {
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
	config *Config
}

// New 创建新的 BaseLogger
func New(cfg *Config) (*BaseLogger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	core, err := buildCore(cfg, level)
	if err != nil {
		return nil, err
	}

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &BaseLogger{
		sugar:  zl.Sugar(),
		level:  level,
		config: cfg,
	}, nil
}

// buildCore 构建 zap core
func buildCore(cfg *Config, level zap.AtomicLevel) (zapcore.Core, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(cfg.TimeFormat)

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case ConsoleFormat:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writers := make([]zapcore.WriteSyncer, 0, 2)

	if cfg.EnableConsole {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	if cfg.EnableFile {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		}))
	}

	return zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level), nil
}

// parseLevel 解析日志等级，未知等级回退到 info
func parseLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug 输出 Debug 日志
func (l *BaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info 输出 Info 日志
func (l *BaseLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn 输出 Warn 日志
func (l *BaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error 输出 Error 日志
func (l *BaseLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// SetLevel 动态调整日志等级，对已派生的子 Logger 同样生效
func (l *BaseLogger) SetLevel(level Level) {
	l.level.SetLevel(parseLevel(level))
}

// Named 派生带名称的子 Logger
func (l *BaseLogger) Named(name string) Logger {
	return &BaseLogger{
		sugar:  l.sugar.Named(name),
		level:  l.level,
		config: l.config,
	}
}

// WithFields 派生带固定字段的子 Logger
func (l *BaseLogger) WithFields(keysAndValues ...interface{}) Logger {
	return &BaseLogger{
		sugar:  l.sugar.With(keysAndValues...),
		level:  l.level,
		config: l.config,
	}
}

// Sync 刷新缓冲区
func (l *BaseLogger) Sync() error {
	return l.sugar.Sync()
}
