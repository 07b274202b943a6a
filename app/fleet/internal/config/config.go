// Package config 汇总编队服务的全部配置。
package config

import (
	"fmt"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/scheduler"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/web"
	pkgconfig "github.com/lk2023060901/steamfleet/pkg/config"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

// EnvPrefix 环境变量前缀，FLEET_CONTROL_ADDR 覆盖 control.addr
const EnvPrefix = "FLEET"

// BotEntry 配置文件中的单个账号
type BotEntry struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
}

// Config 服务配置
type Config struct {
	Log     *logger.Config `mapstructure:"log" yaml:"log"`
	DataDir string         `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	// Simulate 使用内存模拟平台，不连接真实远端
	Simulate  bool              `mapstructure:"simulate" yaml:"simulate"`
	Bots      []BotEntry        `mapstructure:"bots" yaml:"bots"`
	Control   *web.Config       `mapstructure:"control" yaml:"control"`
	Scheduler *scheduler.Config `mapstructure:"scheduler" yaml:"scheduler"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Log:       logger.DefaultConfig(),
		DataDir:   "data",
		Control:   web.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}

// setDefaults 注册全部默认值。
// 注册过的 key 在没有配置文件时也能被 FLEET_* 环境变量覆盖。
func setDefaults(m pkgconfig.Manager) {
	def := Default()

	m.SetDefault("data_dir", def.DataDir)
	m.SetDefault("simulate", def.Simulate)

	m.SetDefault("log.level", string(def.Log.Level))
	m.SetDefault("log.format", string(def.Log.Format))
	m.SetDefault("log.enable_console", def.Log.EnableConsole)
	m.SetDefault("log.enable_file", def.Log.EnableFile)
	m.SetDefault("log.output_path", def.Log.OutputPath)
	m.SetDefault("log.time_format", def.Log.TimeFormat)
	m.SetDefault("log.development", def.Log.Development)
	m.SetDefault("log.rotation.max_size", def.Log.Rotation.MaxSize)
	m.SetDefault("log.rotation.max_backups", def.Log.Rotation.MaxBackups)
	m.SetDefault("log.rotation.max_age", def.Log.Rotation.MaxAge)
	m.SetDefault("log.rotation.compress", def.Log.Rotation.Compress)

	m.SetDefault("control.addr", def.Control.Addr)
	m.SetDefault("control.api_key_file", def.Control.APIKeyFile)
	m.SetDefault("control.rate_limit", def.Control.RateLimit)
	m.SetDefault("control.rate_burst", def.Control.RateBurst)
	m.SetDefault("control.default_app_id", def.Control.DefaultAppID)
	m.SetDefault("control.game_ready_timeout", def.Control.GameReadyTimeout)

	m.SetDefault("scheduler.reconnect_jitter_min", def.Scheduler.ReconnectJitterMin)
	m.SetDefault("scheduler.reconnect_jitter_max", def.Scheduler.ReconnectJitterMax)
	m.SetDefault("scheduler.confirm_jitter_min", def.Scheduler.ConfirmJitterMin)
	m.SetDefault("scheduler.confirm_jitter_max", def.Scheduler.ConfirmJitterMax)
	m.SetDefault("scheduler.gameplay_jitter_min", def.Scheduler.GameplayJitterMin)
	m.SetDefault("scheduler.gameplay_jitter_max", def.Scheduler.GameplayJitterMax)
	m.SetDefault("scheduler.gameplay_idle_max", def.Scheduler.GameplayIdleMax)
}

// Load 读取配置文件并与默认值、环境变量合并
func Load(path string) (*Config, error) {
	cfg := Default()

	m := pkgconfig.NewManager()
	setDefaults(m)
	m.BindEnv(EnvPrefix)

	if path != "" {
		if err := m.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := m.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := pkgconfig.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Log.Validate(); err != nil {
		return nil, fmt.Errorf("log config: %w", err)
	}
	return cfg, nil
}

// Watch 监听配置文件变化，重新加载成功后回调新配置。
// 解析或校验失败时保留当前配置，等待下一次变更。
func Watch(path string, onChange func(*Config)) error {
	if path == "" {
		return nil
	}

	m := pkgconfig.NewManager()
	setDefaults(m)
	m.BindEnv(EnvPrefix)
	if err := m.LoadFile(path); err != nil {
		return err
	}

	return m.Watch(func() {
		cfg := Default()
		if err := m.Unmarshal(cfg); err != nil {
			return
		}
		if err := pkgconfig.NewValidator().Validate(cfg); err != nil {
			return
		}
		if err := cfg.Log.Validate(); err != nil {
			return
		}
		onChange(cfg)
	})
}
