// Package scheduler 驱动编队的三个后台循环：重连、确认处理与游戏会话回收。
// 每个循环以随机抖动间隔自我重排，避免整点扎堆请求远端。
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/bot"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/fleet"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/metrics"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

const (
	// DefaultJitterMin 循环间隔抖动下界
	DefaultJitterMin = 2 * time.Second
	// DefaultJitterMax 循环间隔抖动上界
	DefaultJitterMax = 4 * time.Second
	// DefaultGameplayIdleMax 游戏会话闲置回收阈值
	DefaultGameplayIdleMax = 300 * time.Second
	// ReconnectDrainPause 相邻两次重连之间的停顿
	ReconnectDrainPause = 1 * time.Second
)

// Config 调度配置
type Config struct {
	ReconnectJitterMin time.Duration `mapstructure:"reconnect_jitter_min" yaml:"reconnect_jitter_min"`
	ReconnectJitterMax time.Duration `mapstructure:"reconnect_jitter_max" yaml:"reconnect_jitter_max"`
	ConfirmJitterMin   time.Duration `mapstructure:"confirm_jitter_min" yaml:"confirm_jitter_min"`
	ConfirmJitterMax   time.Duration `mapstructure:"confirm_jitter_max" yaml:"confirm_jitter_max"`
	GameplayJitterMin  time.Duration `mapstructure:"gameplay_jitter_min" yaml:"gameplay_jitter_min"`
	GameplayJitterMax  time.Duration `mapstructure:"gameplay_jitter_max" yaml:"gameplay_jitter_max"`
	GameplayIdleMax    time.Duration `mapstructure:"gameplay_idle_max" yaml:"gameplay_idle_max"`
}

// DefaultConfig 返回默认调度配置
func DefaultConfig() *Config {
	return &Config{
		ReconnectJitterMin: DefaultJitterMin,
		ReconnectJitterMax: DefaultJitterMax,
		ConfirmJitterMin:   DefaultJitterMin,
		ConfirmJitterMax:   DefaultJitterMax,
		GameplayJitterMin:  DefaultJitterMin,
		GameplayJitterMax:  DefaultJitterMax,
		GameplayIdleMax:    DefaultGameplayIdleMax,
	}
}

// Scheduler 编队调度器
type Scheduler struct {
	logger   logger.Logger
	cfg      *Config
	registry *fleet.Registry
	metrics  *metrics.FleetMetrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	timers  map[string]*time.Timer
}

// New 创建调度器，metrics 可为 nil
func New(cfg *Config, registry *fleet.Registry, m *metrics.FleetMetrics, l logger.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		logger:   l.Named("scheduler"),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
	}
}

// Start 启动三个循环，重复启动为空操作
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.timers = make(map[string]*time.Timer)

	s.schedule("reconnect", s.cfg.ReconnectJitterMin, s.cfg.ReconnectJitterMax, s.drainReconnect)
	s.schedule("confirmations", s.cfg.ConfirmJitterMin, s.cfg.ConfirmJitterMax, s.drainConfirmations)
	s.schedule("gameplay", s.cfg.GameplayJitterMin, s.cfg.GameplayJitterMax, s.sweepGameplay)

	s.logger.Info("scheduler started",
		"reconnect_jitter", s.cfg.ReconnectJitterMax,
		"confirm_jitter", s.cfg.ConfirmJitterMax,
		"gameplay_idle_max", s.cfg.GameplayIdleMax)
}

// Stop 停止所有循环，已经触发的一轮会跑完
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.logger.Info("scheduler stopped")
}

// schedule 以抖动间隔安排循环的下一轮，持锁调用
func (s *Scheduler) schedule(name string, min, max time.Duration, fn func()) {
	stop := s.stop
	timer := time.AfterFunc(jitter(min, max), func() {
		select {
		case <-stop:
			return
		default:
		}

		fn()
		s.updateGauges()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running && s.stop == stop {
			s.schedule(name, min, max, fn)
		}
	})
	s.timers[name] = timer
}

// jitter 返回 [min, max] 内的随机时长
func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// drainReconnect 逐个重连排队中的账号。
// 失败的账号从队列丢弃并结束本轮，重新入队交给断线事件与会话失效判定；
// 成功后停顿片刻再处理下一个。
func (s *Scheduler) drainReconnect() {
	for {
		b := s.registry.PopPendingReconnect()
		if b == nil {
			return
		}

		err := b.Connect(context.Background(), "")
		if s.metrics != nil {
			s.metrics.ObserveConnect(err)
		}
		if err != nil {
			s.logger.Error("reconnect failed, dropping from queue",
				"account", b.Username(), "error", err)
			return
		}

		s.logger.Info("bot reconnected", "account", b.CanonicalName())

		select {
		case <-time.After(ReconnectDrainPause):
		case <-s.stopped():
			return
		}
	}
}

// drainConfirmations 处理排队账号的全部待确认项
func (s *Scheduler) drainConfirmations() {
	for {
		b := s.registry.PopPendingConfirmation()
		if b == nil {
			return
		}
		s.processConfirmations(b)
	}
}

// processConfirmations 拉取并批准账号的确认，从最近的开始。
// 单条失败不中断，拉取失败交给会话失效判定。
func (s *Scheduler) processConfirmations(b *bot.Bot) {
	confs, err := b.GetConfirmations()
	if err != nil {
		s.logger.Error("failed to fetch confirmations", "account", b.Username(), "error", err)
		s.registry.RelogIfNeeded(b, err)
		return
	}
	if len(confs) == 0 {
		return
	}

	s.logger.Info("processing confirmations", "account", b.Username(), "count", len(confs))

	for i := len(confs) - 1; i >= 0; i-- {
		err := b.AcceptConfirmation(confs[i])
		if s.metrics != nil {
			s.metrics.ObserveConfirmation(err)
		}
		if err != nil {
			s.logger.Error("failed to accept confirmation",
				"account", b.Username(), "id", confs[i].ID, "error", err)
		}
	}
}

// sweepGameplay 回收闲置超过阈值的游戏会话
func (s *Scheduler) sweepGameplay() {
	now := time.Now()
	for _, b := range s.registry.GetAll(false, false) {
		app, at := b.PlayedApp()
		if app == 0 {
			continue
		}
		if idle := now.Sub(at); idle >= s.cfg.GameplayIdleMax {
			s.logger.Info("closing idle game session",
				"account", b.Username(), "app", app, "idle", idle.Round(time.Second))
			b.CloseGame()
		}
	}
}

func (s *Scheduler) updateGauges() {
	if s.metrics == nil {
		return
	}
	online := len(s.registry.GetAll(true, false))
	total := s.registry.Count(false)
	s.metrics.SetFleetSize(online, total)
	s.metrics.SetQueueDepth(metrics.QueueReconnect, s.registry.PendingReconnects())
	s.metrics.SetQueueDepth(metrics.QueueConfirmation, s.registry.PendingConfirmations())
}

func (s *Scheduler) stopped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.stop
}
