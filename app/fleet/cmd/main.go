// 编队服务入口：加载配置、装配注册表与调度器、启动控制接口。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	appconfig "github.com/lk2023060901/steamfleet/app/fleet/internal/config"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/fleet"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/metrics"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/scheduler"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam/fake"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/web"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath string
		genKey     bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.BoolVar(&genKey, "gen-api-key", false, "生成一个控制接口访问密钥后退出")
	pflag.Parse()

	if err := run(configPath, genKey); err != nil {
		fmt.Fprintln(os.Stderr, "fleet:", err)
		os.Exit(1)
	}
}

func run(configPath string, genKey bool) error {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer l.Sync()

	if configPath != "" {
		err := appconfig.Watch(configPath, func(next *appconfig.Config) {
			l.SetLevel(next.Log.Level)
			l.Info("config reloaded", "log_level", next.Log.Level)
		})
		if err != nil {
			l.Error("failed to watch config file", "path", configPath, "error", err)
		}
	}

	keys, err := web.NewKeyStore(cfg.Control.APIKeyFile)
	if err != nil {
		return err
	}
	if genKey {
		key, err := keys.Generate()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}
	if key, created, err := keys.EnsureKey(); err != nil {
		return err
	} else if created {
		l.Warn("no control api key on disk, generated one", "key", key, "file", cfg.Control.APIKeyFile)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	factory, err := buildFactory(cfg, l)
	if err != nil {
		return err
	}

	registry := fleet.New(factory, cfg.DataDir, l)
	for _, entry := range cfg.Bots {
		if entry.Disabled {
			l.Info("skipping disabled bot from config", "account", entry.Username)
			continue
		}
		if _, err := registry.Add(entry.Username, entry.Password); err != nil {
			l.Error("failed to add bot from config", "account", entry.Username, "error", err)
		}
	}

	m := metrics.New()

	sched := scheduler.New(cfg.Scheduler, registry, m, l)
	sched.Start()

	server := web.NewServer(cfg.Control, registry, m, keys, l)
	server.Start()

	l.Info("fleet service up",
		"bots", registry.Count(false),
		"control_addr", cfg.Control.Addr,
		"simulate", cfg.Simulate)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	l.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		l.Error("control api shutdown failed", "error", err)
	}

	sched.Stop()
	registry.Shutdown()
	return nil
}

// buildFactory 装配平台客户端工厂。
// 真实协议客户端由外部实现接入，未接入时只支持模拟模式。
func buildFactory(cfg *appconfig.Config, l logger.Logger) (fleet.ClientFactory, error) {
	if !cfg.Simulate {
		return nil, fmt.Errorf("no platform client configured, set simulate: true to run against the in-memory platform")
	}

	l.Warn("simulate mode enabled, using in-memory platform")

	p := fake.NewPlatform()
	for i, entry := range cfg.Bots {
		p.AddAccount(&fake.Account{
			Username:    strings.ToLower(strings.TrimSpace(entry.Username)),
			Password:    entry.Password,
			SteamID:     fmt.Sprintf("765611980%08d", i+1),
			DisplayName: entry.Username,
		})
	}
	if cfg.Control.DefaultAppID != 0 {
		p.SupportApp(cfg.Control.DefaultAppID, nil)
	}
	return p.Clients, nil
}
