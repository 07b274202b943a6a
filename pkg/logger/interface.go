package logger

// Logger 日志接口
// 其他 pkg 和 app 模块引用此接口，避免直接依赖 zap
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// Named 派生带名称的子 Logger
	Named(name string) Logger
	// WithFields 派生带固定字段的子 Logger
	WithFields(keysAndValues ...interface{}) Logger

	// Sync 刷新缓冲区
	Sync() error
}
