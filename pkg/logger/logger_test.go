package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewWithDefaults 测试默认配置创建
func TestNewWithDefaults(t *testing.T) {
	l, err := New(nil)
	if err != nil {
		t.Fatalf("New with nil config failed: %v", err)
	}

	l.Info("hello", "key", "value")

	child := l.Named("test").WithFields("bot", "alice")
	child.Debug("derived logger works")
}

// TestValidate 测试配置验证
func TestValidate(t *testing.T) {
	cfg := &Config{EnableFile: true, EnableConsole: false}
	if _, err := New(cfg); err != ErrInvalidOutputPath {
		t.Errorf("Expected ErrInvalidOutputPath, got %v", err)
	}

	cfg = &Config{EnableFile: false, EnableConsole: false}
	if _, err := New(cfg); err != ErrNoOutputEnabled {
		t.Errorf("Expected ErrNoOutputEnabled, got %v", err)
	}
}

// TestFileOutput 测试文件输出
func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	cfg := DefaultConfig()
	cfg.Format = JSONFormat
	cfg.EnableConsole = false
	cfg.EnableFile = true
	cfg.OutputPath = logPath

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("written to file", "n", 42)
	l.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Log file missing expected message, got: %s", data)
	}
}

// TestSetLevel 测试动态调整日志等级
func TestSetLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	cfg := DefaultConfig()
	cfg.Format = JSONFormat
	cfg.EnableConsole = false
	cfg.EnableFile = true
	cfg.OutputPath = logPath

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	child := l.Named("child")
	child.Debug("below threshold")

	l.SetLevel(DebugLevel)
	child.Debug("after raise")
	l.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "below threshold") {
		t.Errorf("Debug message logged before level raise: %s", data)
	}
	if !strings.Contains(string(data), "after raise") {
		t.Errorf("Debug message missing after level raise: %s", data)
	}
}

// TestDefault 测试默认 logger 懒加载
func TestDefault(t *testing.T) {
	SetDefault(nil)

	l := Default()
	if l == nil {
		t.Fatal("Default returned nil")
	}

	noop := NewNoop()
	SetDefault(noop)
	if Default() != Logger(noop) {
		t.Error("SetDefault did not take effect")
	}

	SetDefault(nil)
}
