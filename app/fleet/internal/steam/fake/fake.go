// Package fake 提供内存中的平台模拟。
// 测试与演示模式用它替代真实协议客户端，行为可按账号配置。
package fake

import (
	"sync"
	"time"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

// Account 模拟账号及其行为配置
type Account struct {
	Username    string
	Password    string
	SteamID     string
	DisplayName string

	// RequireCode 登录必须提供验证码
	RequireCode bool
	// ValidateCode 校验验证码，nil 时任何非空验证码通过
	ValidateCode func(code string) bool
	// WrongCodeOnce 第一个验证码按错误处理，触发一次重试请求
	WrongCodeOnce bool
	// Silent 对登录不作任何响应
	Silent bool
	// RejectWith 非 CauseOK 时以该结果拒绝登录
	RejectWith steam.Cause

	// Inventory 账号库存
	Inventory []steam.Item
	// OfferToken 报价令牌
	OfferToken string
	// APIKey SetCookies 返回的 API Key，空值取默认
	APIKey string
	// FailAPIKey 非 nil 时 API Key 拉取返回该错误
	FailAPIKey error
	// Escrow 报价托管期
	Escrow steam.EscrowDetails

	wrongCodeUsed bool
}

// appConfig 单个应用的网关行为配置
type appConfig struct {
	payload        []steam.Item
	payloadDelay   time.Duration
	inspectResults map[string]steam.InspectResult
	inspectDelay   time.Duration
	premium        bool
	slots          int
}

// Platform 内存平台，维护账号、确认、报价与网关配置
type Platform struct {
	mu            sync.Mutex
	accounts      map[string]*Account
	confirmations map[string][]*steam.Confirmation
	offers        map[string]*steam.TradeOffer
	apps          map[uint32]*appConfig
	sessions      map[string]*sessionClient
	confirmErr    map[string]error
	acceptErr     map[string]error
	acceptedConfs map[string][]string
	anonSeq       int
}

// NewPlatform 创建空平台
func NewPlatform() *Platform {
	return &Platform{
		accounts:      make(map[string]*Account),
		confirmations: make(map[string][]*steam.Confirmation),
		offers:        make(map[string]*steam.TradeOffer),
		apps:          make(map[uint32]*appConfig),
		sessions:      make(map[string]*sessionClient),
		confirmErr:    make(map[string]error),
		acceptErr:     make(map[string]error),
		acceptedConfs: make(map[string][]string),
	}
}

// AddAccount 注册模拟账号
func (p *Platform) AddAccount(a *Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[a.Username] = a
}

// SupportApp 声明支持的应用及其网关返回的数据
func (p *Platform) SupportApp(appID uint32, payload []steam.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apps[appID] = &appConfig{
		payload:        payload,
		inspectResults: make(map[string]steam.InspectResult),
		slots:          1000,
	}
}

// SetPayloadDelay 配置网关会话建立后数据负载到达的延迟
func (p *Platform) SetPayloadDelay(appID uint32, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if app, ok := p.apps[appID]; ok {
		app.payloadDelay = delay
	}
}

// SetInspectResult 配置单件物品查询的返回值
func (p *Platform) SetInspectResult(appID uint32, link string, r steam.InspectResult, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if app, ok := p.apps[appID]; ok {
		app.inspectResults[link] = r
		app.inspectDelay = delay
	}
}

// AddConfirmation 注入待处理确认
func (p *Platform) AddConfirmation(username string, c *steam.Confirmation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmations[username] = append(p.confirmations[username], c)
}

// FailConfirmations 让该账号的确认拉取返回指定错误
func (p *Platform) FailConfirmations(username string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmErr[username] = err
}

// FailAccept 让批准指定确认返回错误
func (p *Platform) FailAccept(confID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acceptErr[confID] = err
}

// AcceptedConfirmations 返回该账号已批准的确认 ID
func (p *Platform) AcceptedConfirmations(username string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.acceptedConfs[username]...)
}

// PendingConfirmations 返回该账号剩余的待处理确认数
func (p *Platform) PendingConfirmations(username string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.confirmations[username])
}

// AddOffer 注入报价
func (p *Platform) AddOffer(o *steam.TradeOffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers[o.ID] = o
}

// Offer 返回报价
func (p *Platform) Offer(id string) *steam.TradeOffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers[id]
}

// Clients 创建绑定到指定账号的客户端集合
func (p *Platform) Clients(username string) steam.Clients {
	session := newSessionClient(p, username)

	p.mu.Lock()
	p.sessions[username] = session
	p.mu.Unlock()

	return steam.Clients{
		User:      session,
		Community: &communityClient{p: p, username: username},
		Trade:     &tradeClient{p: p, username: username},
		Gateways:  &gatewayProvider{p: p},
	}
}

// DropConnection 模拟服务端断开指定账号的连接
func (p *Platform) DropConnection(username string, cause steam.Cause) {
	p.mu.Lock()
	session := p.sessions[username]
	p.mu.Unlock()

	if session != nil {
		session.drop(cause)
	}
}

// Close 关闭全部事件通道，结束消费方的事件循环
func (p *Platform) Close() {
	p.mu.Lock()
	sessions := make([]*sessionClient, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*sessionClient)
	p.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (p *Platform) account(username string) *Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accounts[username]
}

func (p *Platform) nextAnonID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.anonSeq++
	return "9000000000000000" + string(rune('0'+p.anonSeq%10))
}
