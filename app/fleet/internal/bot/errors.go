package bot

import "errors"

var (
	// ErrConnectTimeout 登录在超时窗口内未收到任何适用事件
	ErrConnectTimeout = errors.New("connect timed out")

	// ErrConnectPending 已有一次登录在进行中
	ErrConnectPending = errors.New("connect already in progress")

	// ErrNoWebSession 尚未建立 Web 会话
	ErrNoWebSession = errors.New("no web session established")

	// ErrWebRefreshCooldown 距上次令牌刷新尝试间隔不足
	ErrWebRefreshCooldown = errors.New("web token refresh on cooldown")

	// ErrUnsupportedApp 应用未加载或不受支持
	ErrUnsupportedApp = errors.New("given app not loaded or unsupported")

	// ErrSwitchCooldown 距上次游戏会话切换间隔不足
	ErrSwitchCooldown = errors.New("game switched too recently")

	// ErrReadyTimeout 等待网关数据就绪超时
	ErrReadyTimeout = errors.New("timed out waiting for gateway payload")

	// ErrInspectTimeout 单件物品查询超时
	ErrInspectTimeout = errors.New("inspect timed out")

	// ErrMissingInventoryApp 未指定库存查询的应用
	ErrMissingInventoryApp = errors.New("cannot load inventory: app not given")

	// ErrNoAPIKey 无法取得 API Key
	ErrNoAPIKey = errors.New("no api key")

	// ErrEscrowDetails 无法取得托管期信息
	ErrEscrowDetails = errors.New("can't get escrow details")
)
