package web

import "time"

// Config 控制接口配置
type Config struct {
	// Addr 监听地址
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`
	// APIKeyFile 访问密钥文件路径
	APIKeyFile string `mapstructure:"api_key_file" yaml:"api_key_file"`
	// RateLimit 每秒允许的请求数
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"min=0"`
	// RateBurst 突发请求上限
	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst" validate:"min=0"`
	// DefaultAppID 库存与游戏操作的默认应用
	DefaultAppID uint32 `mapstructure:"default_app_id" yaml:"default_app_id"`
	// GameReadyTimeout 等待网关数据就绪的时长
	GameReadyTimeout time.Duration `mapstructure:"game_ready_timeout" yaml:"game_ready_timeout"`
}

// DefaultConfig 返回默认控制接口配置
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8080",
		APIKeyFile:       "apikeys.json",
		RateLimit:        20,
		RateBurst:        40,
		DefaultAppID:     730,
		GameReadyTimeout: 10 * time.Second,
	}
}
