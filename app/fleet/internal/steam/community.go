package steam

import "time"

// Confirmation 待处理的移动端确认
type Confirmation struct {
	ID        string
	Title     string
	Time      time.Time
	Receiving string
	Key       string
	OfferID   string // 关联的报价 ID，可能为空
}

// InventoryOptions 库存查询参数
type InventoryOptions struct {
	AppID     uint32
	ContextID uint32
	Count     int
	Language  string
	StartID   string
}

// Inventory 库存页
type Inventory struct {
	Items      []Item
	TotalCount int
	MoreStart  string // 非空表示还有后续页
}

// Item 平台返回的单件物品，原样透传
type Item map[string]any

// CommunityClient 社区站点客户端（确认、库存、API Key）
// 所有失败以 *Error 或携带既定消息文本的 error 返回
type CommunityClient interface {
	// SetCookies 注入 Web 会话 Cookie
	SetCookies(cookies []string)
	// GetConfirmations 拉取待处理确认列表
	GetConfirmations(keyTime int64, key string) ([]*Confirmation, error)
	// AcceptConfirmation 批准单条确认
	AcceptConfirmation(conf *Confirmation, keyTime int64, allowKey string) error
	// LoadInventory 拉取库存页
	LoadInventory(steamID string, opts *InventoryOptions) (*Inventory, error)
	// LoadInventoryContext 抓取应用上下文数据
	LoadInventoryContext(steamID string) (map[string]any, error)
	// StopConfirmationChecker 停止确认轮询子组件，幂等
	StopConfirmationChecker() error
}
