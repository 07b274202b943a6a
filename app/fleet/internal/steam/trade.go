package steam

import "time"

// Asset 报价中的单件资产
type Asset struct {
	AssetID   string
	AppID     string
	ContextID string
	Amount    string
}

// TradeOffer 交易报价
type TradeOffer struct {
	ID                 string
	IsOurOffer         bool
	ItemsToGive        []Asset
	ItemsToReceive     []Asset
	Partner            string // 对方平台 ID
	Message            string
	State              int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ExpiresAt          time.Time
	EscrowEndsAt       time.Time
	ConfirmationMethod int
	Status             string
}

// OfferDraft 待发送的报价
type OfferDraft struct {
	Partner       string
	Token         string
	Message       string
	ItemsFromBot  []Asset
	ItemsFromUser []Asset
}

// EscrowDetails 报价双方的托管期（天）
type EscrowDetails struct {
	MyDays    int
	TheirDays int
}

// TradeClient 交易报价客户端
type TradeClient interface {
	// SetCookies 注入 Web 会话 Cookie 并返回拉取到的 API Key
	SetCookies(cookies []string) (apiKey string, err error)
	// GetOffer 获取单个报价
	GetOffer(id string) (*TradeOffer, error)
	// GetActiveOffers 获取全部进行中的报价（已发出 + 收到）
	GetActiveOffers() (sent, received []*TradeOffer, err error)
	// AcceptOffer 接受报价
	AcceptOffer(id string) (status string, err error)
	// CancelOffer 取消报价
	CancelOffer(id string) error
	// GetEscrow 查询报价双方的托管期
	GetEscrow(draft *OfferDraft) (*EscrowDetails, error)
	// SendOffer 发送报价
	SendOffer(draft *OfferDraft) (*TradeOffer, error)
	// GetOfferToken 获取本账号的报价令牌
	GetOfferToken() (string, error)
	// Shutdown 停止报价轮询，幂等
	Shutdown() error
}
