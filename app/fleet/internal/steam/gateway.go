package steam

import "time"

// GatewayInfo 网关会话的基础信息
type GatewayInfo struct {
	Connected bool
	Premium   bool
	Slots     int
}

// InspectResult 单件物品查询结果，原样透传
type InspectResult map[string]any

// GatewayClient 单个应用的网关（GC）连接
// 数据负载在会话建立后异步到达，调用方需要有界轮询而非假设同步可用
type GatewayClient interface {
	// Play 请求建立该应用的网关会话
	Play()
	// Stop 关闭网关会话
	Stop()
	// SessionUp 返回会话是否建立以及建立时间
	SessionUp() (bool, time.Time)
	// Info 返回会话基础信息
	Info() GatewayInfo
	// Snapshot 返回首个数据负载；未就绪时 ok 为 false
	Snapshot() ([]Item, bool)
	// Inspect 异步查询单件物品，结果通过回调投递
	// 回调最多触发一次；网关不保证触发（调用方自行超时）
	Inspect(link string, cb func(InspectResult))
}

// GatewayProvider 按应用 ID 提供网关客户端
type GatewayProvider interface {
	// Gateway 返回指定应用的网关，不支持的应用返回 false
	Gateway(appID uint32) (GatewayClient, bool)
}
