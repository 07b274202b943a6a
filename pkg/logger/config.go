package logger

// Level 日志等级
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// Config 日志配置
type Config struct {
	Level  Level  `mapstructure:"level" yaml:"level"`   // 日志等级
	Format Format `mapstructure:"format" yaml:"format"` // 输出格式 (json/console)

	EnableConsole bool   `mapstructure:"enable_console" yaml:"enable_console"` // 启用控制台输出
	EnableFile    bool   `mapstructure:"enable_file" yaml:"enable_file"`       // 启用文件输出
	OutputPath    string `mapstructure:"output_path" yaml:"output_path"`       // 日志文件路径

	TimeFormat string `mapstructure:"time_format" yaml:"time_format"` // 时间格式

	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`

	Development bool `mapstructure:"development" yaml:"development"` // 开发模式 (彩色等级、可读时间)
}

// RotationConfig 按大小轮换配置 (lumberjack)
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`       // 单文件最大大小 (MB)
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"` // 保留的旧文件数量
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`         // 保留天数
	Compress   bool `mapstructure:"compress" yaml:"compress"`       // 是否压缩旧文件
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		EnableFile:    false,
		TimeFormat:    "2006-01-02 15:04:05",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.EnableFile && c.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	return nil
}
