package logger

import "sync"

var (
	defaultLogger   Logger
	defaultLoggerMu sync.RWMutex
)

// InitDefault 初始化默认 logger
func InitDefault(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}

	SetDefault(l)
	return nil
}

// SetDefault 设置默认 logger
func SetDefault(l Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// Default 获取默认 logger
// 懒加载：首次调用时使用默认配置（仅控制台输出）
func Default() Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()

	if l != nil {
		return l
	}

	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()

	if defaultLogger == nil {
		l, err := New(DefaultConfig())
		if err != nil {
			panic(err)
		}
		defaultLogger = l
	}

	return defaultLogger
}
