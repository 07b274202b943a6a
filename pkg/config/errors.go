package config

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("config is nil")

	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = errors.New("config validation failed")
)
