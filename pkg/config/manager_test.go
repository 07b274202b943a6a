package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// managerTestConfig 测试配置结构
type managerTestConfig struct {
	Control struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
	} `mapstructure:"control"`
	Scheduler struct {
		IntervalMin time.Duration `mapstructure:"interval_min"`
		IntervalMax time.Duration `mapstructure:"interval_max"`
	} `mapstructure:"scheduler"`
}

// createTestConfigFile 创建测试配置文件
func createTestConfigFile(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	return configPath
}

// TestManagerLoadFile 测试加载配置文件
func TestManagerLoadFile(t *testing.T) {
	configContent := `
control:
  port: 5244
  host: "127.0.0.1"
scheduler:
  interval_min: 2s
  interval_max: 4s
`

	mgr := NewManager()
	if err := mgr.LoadFile(createTestConfigFile(t, configContent)); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	var cfg managerTestConfig
	if err := mgr.Unmarshal(&cfg); err != nil {
		t.Fatalf("Failed to unmarshal config: %v", err)
	}

	if cfg.Control.Port != 5244 {
		t.Errorf("Expected port 5244, got %d", cfg.Control.Port)
	}
	if cfg.Scheduler.IntervalMin != 2*time.Second {
		t.Errorf("Expected interval_min 2s, got %v", cfg.Scheduler.IntervalMin)
	}
}

// TestManagerLoadFileMissing 测试加载不存在的文件
func TestManagerLoadFileMissing(t *testing.T) {
	mgr := NewManager()
	if err := mgr.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

// TestManagerBindEnv 测试环境变量覆盖
func TestManagerBindEnv(t *testing.T) {
	configContent := `
control:
  port: 5244
`

	t.Setenv("FLEET_CONTROL_PORT", "9999")

	mgr := NewManager()
	mgr.BindEnv("FLEET")
	if err := mgr.LoadFile(createTestConfigFile(t, configContent)); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if got := mgr.GetInt("control.port"); got != 9999 {
		t.Errorf("Expected env override 9999, got %d", got)
	}
}

// TestManagerSetDefault 测试默认值与环境变量覆盖
func TestManagerSetDefault(t *testing.T) {
	t.Setenv("FLEET_CONTROL_HOST", "10.0.0.1")

	mgr := NewManager()
	mgr.SetDefault("control.port", 5244)
	mgr.SetDefault("control.host", "127.0.0.1")
	mgr.BindEnv("FLEET")

	// 无配置文件时默认值生效，注册过的 key 可被环境变量覆盖
	if got := mgr.GetInt("control.port"); got != 5244 {
		t.Errorf("Expected default 5244, got %d", got)
	}
	if got := mgr.GetString("control.host"); got != "10.0.0.1" {
		t.Errorf("Expected env override 10.0.0.1, got %s", got)
	}

	var cfg managerTestConfig
	if err := mgr.Unmarshal(&cfg); err != nil {
		t.Fatalf("Failed to unmarshal config: %v", err)
	}
	if cfg.Control.Host != "10.0.0.1" {
		t.Errorf("Expected unmarshalled host 10.0.0.1, got %s", cfg.Control.Host)
	}
}

// TestManagerWatch 测试配置文件变更通知
func TestManagerWatch(t *testing.T) {
	path := createTestConfigFile(t, "control:\n  port: 5244\n")

	mgr := NewManager()
	if err := mgr.LoadFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	changed := make(chan struct{}, 1)
	if err := mgr.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}

	if err := os.WriteFile(path, []byte("control:\n  port: 9999\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected change notification")
	}

	if got := mgr.GetInt("control.port"); got != 9999 {
		t.Errorf("Expected reloaded port 9999, got %d", got)
	}
}

// TestManagerUnmarshalKey 测试解析指定 key
func TestManagerUnmarshalKey(t *testing.T) {
	configContent := `
control:
  port: 5244
  host: "127.0.0.1"
`

	mgr := NewManager()
	if err := mgr.LoadFile(createTestConfigFile(t, configContent)); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	var port int
	if err := mgr.UnmarshalKey("control.port", &port); err != nil {
		t.Fatalf("Failed to unmarshal key: %v", err)
	}
	if port != 5244 {
		t.Errorf("Expected 5244, got %d", port)
	}

	if !mgr.IsSet("control.host") {
		t.Error("Expected control.host to be set")
	}
	if mgr.IsSet("control.missing") {
		t.Error("Expected control.missing to be unset")
	}
}
