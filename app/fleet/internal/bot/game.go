package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

const (
	// GameSwitchCooldown 切换到另一应用前须与上次游玩保持的最小间隔
	GameSwitchCooldown = 60 * time.Second

	// InspectTimeout 单件物品查询的等待时长
	InspectTimeout = 2 * time.Second

	gameReadyPoll = 100 * time.Millisecond
)

// gameSession 单个应用的网关子会话，按需懒加载且不主动释放
type gameSession struct {
	appID   uint32
	gateway steam.GatewayClient
}

// GameStatus 游戏会话状态，供控制接口透出
type GameStatus struct {
	AppID     uint32 `json:"app_id"`
	Connected bool   `json:"connected"`
	Premium   bool   `json:"premium"`
	Slots     int    `json:"slots"`
}

// acquireGame 返回应用的子会话，首次访问时创建
func (b *Bot) acquireGame(appID uint32) (*gameSession, error) {
	if appID == 0 {
		return nil, ErrUnsupportedApp
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.games[appID]; ok {
		return s, nil
	}
	gw, ok := b.clients.Gateways.Gateway(appID)
	if !ok {
		return nil, fmt.Errorf("%w: app %d", ErrUnsupportedApp, appID)
	}
	s := &gameSession{appID: appID, gateway: gw}
	b.games[appID] = s
	return s, nil
}

// PlayGame 请求建立应用的网关会话。
// 距上次游玩其他应用不足冷却时长时拒绝切换。
func (b *Bot) PlayGame(appID uint32) error {
	s, err := b.acquireGame(appID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	now := b.now()
	if remaining := b.switchCooldownLocked(appID, now); remaining > 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %v remaining", ErrSwitchCooldown, remaining.Round(time.Second))
	}
	prev := b.playedApp
	b.playedApp = appID
	b.playedAppAt = now
	prevSession := b.games[prev]
	b.mu.Unlock()

	if prev != 0 && prev != appID && prevSession != nil {
		prevSession.gateway.Stop()
	}

	s.gateway.Play()
	b.logger.Info("requested game session", "app", appID)
	return nil
}

// CloseGame 关闭当前游戏会话，无会话时为空操作
func (b *Bot) CloseGame() {
	b.mu.Lock()
	app := b.playedApp
	b.playedApp = 0
	s := b.games[app]
	b.mu.Unlock()

	if app == 0 || s == nil {
		return
	}
	s.gateway.Stop()
	b.logger.Info("closed game session", "app", app)
}

// PlayedApp 返回当前游玩的应用及开始时间，未游玩时应用为 0
func (b *Bot) PlayedApp() (uint32, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playedApp, b.playedAppAt
}

// SwitchCooldownRemaining 返回切换到指定应用前还需等待的时长
func (b *Bot) SwitchCooldownRemaining(appID uint32) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.switchCooldownLocked(appID, b.now())
}

func (b *Bot) switchCooldownLocked(appID uint32, now time.Time) time.Duration {
	if b.playedApp == 0 || b.playedApp == appID {
		return 0
	}
	elapsed := now.Sub(b.playedAppAt)
	if elapsed >= GameSwitchCooldown {
		return 0
	}
	return GameSwitchCooldown - elapsed
}

// GameStatus 返回应用网关会话的状态
func (b *Bot) GameStatus(appID uint32) (*GameStatus, error) {
	s, err := b.acquireGame(appID)
	if err != nil {
		return nil, err
	}
	info := s.gateway.Info()
	return &GameStatus{
		AppID:     appID,
		Connected: info.Connected,
		Premium:   info.Premium,
		Slots:     info.Slots,
	}, nil
}

// AwaitGameReady 建立游戏会话并轮询等待首个数据负载。
// 返回负载与网关会话建立时间；超时返回 ErrReadyTimeout。
func (b *Bot) AwaitGameReady(ctx context.Context, appID uint32, timeout time.Duration) ([]steam.Item, time.Time, error) {
	if err := b.PlayGame(appID); err != nil {
		return nil, time.Time{}, err
	}
	s, err := b.acquireGame(appID)
	if err != nil {
		return nil, time.Time{}, err
	}

	ticker := time.NewTicker(gameReadyPoll)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if items, ok := s.gateway.Snapshot(); ok {
			_, at := s.gateway.SessionUp()
			return items, at, nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return nil, time.Time{}, fmt.Errorf("%w: app %d after %v", ErrReadyTimeout, appID, timeout)
		case <-ctx.Done():
			return nil, time.Time{}, ctx.Err()
		}
	}
}

// InspectItem 单件物品查询，结果与超时先到者生效，迟到的结果被丢弃
func (b *Bot) InspectItem(appID uint32, link string) (steam.InspectResult, error) {
	if err := b.PlayGame(appID); err != nil {
		return nil, err
	}
	s, err := b.acquireGame(appID)
	if err != nil {
		return nil, err
	}

	ch := make(chan steam.InspectResult, 1)
	s.gateway.Inspect(link, func(r steam.InspectResult) {
		select {
		case ch <- r:
		default:
		}
	})

	timer := time.NewTimer(b.inspectTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrInspectTimeout, link)
	}
}
