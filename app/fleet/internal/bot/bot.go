// Package bot 实现单账号会话的状态机：登录、Web 会话、验证码、社区与交易操作。
// 远端事件由单独的事件循环 goroutine 串行处理，外部操作通过互斥量与其协调。
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

const (
	// AnonymousUsername 匿名账号的规范用户名
	AnonymousUsername = "anonymous"

	// PlaceholderSteamID 身份未确立时的占位 ID
	PlaceholderSteamID = "00000000000000000"

	// ConnectTimeout 一次登录等待结果的时长
	ConnectTimeout = 5 * time.Second

	// OTPCooldown 上一个验证码被拒后重新生成前的等待时长
	OTPCooldown = 15 * time.Second

	// InventoryPageSize 单页库存条目数
	InventoryPageSize = 3000

	// WebTokenRefreshInterval 相邻两次 Web 令牌刷新尝试的最小间隔
	WebTokenRefreshInterval = 60 * time.Second

	defaultContextID = 2
	defaultLanguage  = "english"
)

// Config 会话配置
type Config struct {
	// Username 账号用户名，空值表示匿名账号
	Username string
	// Password 初始密码，可在 Connect 时覆盖
	Password string
	// DataDir 共享密钥文件所在目录
	DataDir string
	// OnConnectionError 底层连接断开时的回调，在事件循环中调用
	OnConnectionError func(cause steam.Cause)
}

// Bot 单账号会话
type Bot struct {
	logger  logger.Logger
	clients steam.Clients

	username  string
	anonymous bool
	dataDir   string
	onConnErr func(cause steam.Cause)

	// opMu 串行化跨调度循环的外部操作（重连与确认处理）
	opMu sync.Mutex

	mu          sync.Mutex
	password    string
	steamID     string
	displayName string
	sessionID   string
	cookies     []string
	apiKey      string
	loggedOn    bool
	connecting  bool
	relog       bool
	disabled    bool
	loginAt     time.Time
	webLoginAt  time.Time
	waiter      chan error
	otpSubmit   func(code string)
	twoFactor   *TwoFactor

	playedApp   uint32
	playedAppAt time.Time
	games       map[uint32]*gameSession

	webLimiter *rate.Limiter

	connectTimeout time.Duration
	otpCooldown    time.Duration
	inspectTimeout time.Duration
	now            func() time.Time
}

// New 创建会话并启动事件循环
func New(cfg Config, clients steam.Clients, l logger.Logger) *Bot {
	username := strings.ToLower(strings.TrimSpace(cfg.Username))
	anonymous := username == "" || username == AnonymousUsername
	if anonymous {
		username = AnonymousUsername
	}

	b := &Bot{
		logger:         l.Named("bot").WithFields("account", username),
		clients:        clients,
		username:       username,
		anonymous:      anonymous,
		dataDir:        cfg.DataDir,
		onConnErr:      cfg.OnConnectionError,
		password:       cfg.Password,
		games:          make(map[uint32]*gameSession),
		webLimiter:     rate.NewLimiter(rate.Every(WebTokenRefreshInterval), 1),
		connectTimeout: ConnectTimeout,
		otpCooldown:    OTPCooldown,
		inspectTimeout: InspectTimeout,
		now:            time.Now,
	}

	go b.loop()
	return b
}

// loop 串行消费远端事件，通道关闭时退出
func (b *Bot) loop() {
	for ev := range b.clients.User.Events() {
		b.handleEvent(ev)
	}
}

func (b *Bot) handleEvent(ev steam.Event) {
	switch e := ev.(type) {
	case steam.LoggedOnEvent:
		b.handleLoggedOn(e)
	case steam.WebSessionEvent:
		b.handleWebSession(e)
	case steam.DisconnectedEvent:
		b.handleDisconnected(e)
	case steam.OTPRequestEvent:
		b.handleOTPRequest(e)
	case steam.AccountInfoEvent:
		b.mu.Lock()
		b.displayName = e.Name
		b.mu.Unlock()
	default:
		b.logger.Debug("ignoring unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

// Connect 发起（或重新发起）登录并等待结果。
// 已登录时先注销再重登；超时窗口内未收到适用事件则失败。
func (b *Bot) Connect(ctx context.Context, password string) error {
	b.mu.Lock()
	if b.connecting {
		b.mu.Unlock()
		return ErrConnectPending
	}
	if password != "" {
		b.password = password
	}
	relog := b.loggedOn
	if relog {
		b.relog = true
	}
	b.connecting = true
	waiter := make(chan error, 1)
	b.waiter = waiter
	b.mu.Unlock()

	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.logger.Info("connecting to platform", "relog", relog)

	if relog {
		if err := b.clients.User.LogOff(); err != nil {
			b.logger.Error("logoff before relogin failed", "error", err)
		}
	} else {
		b.doLogin()
	}

	timer := time.NewTimer(b.connectTimeout)
	defer timer.Stop()

	select {
	case err := <-waiter:
		if err != nil {
			return fmt.Errorf("connect %s: %w", b.username, err)
		}
		return nil
	case <-timer.C:
		b.abandonWaiter(waiter)
		return fmt.Errorf("connect %s after %v: %w", b.username, b.connectTimeout, ErrConnectTimeout)
	case <-ctx.Done():
		b.abandonWaiter(waiter)
		return ctx.Err()
	}
}

// Disconnect 按序关闭子组件后注销，所有错误只记录不上抛
func (b *Bot) Disconnect() {
	b.logger.Info("disconnecting from platform")

	if err := b.clients.Community.StopConfirmationChecker(); err != nil {
		b.logger.Error("failed to stop confirmation checker", "error", err)
	}
	if err := b.clients.Trade.Shutdown(); err != nil {
		b.logger.Error("failed to shut down offer client", "error", err)
	}
	b.CloseGame()
	if err := b.clients.User.LogOff(); err != nil {
		b.logger.Error("logoff failed", "error", err)
	}
}

// doLogin 用当前凭证发起一次登录
func (b *Bot) doLogin() {
	b.mu.Lock()
	anonymous := b.anonymous
	username := b.username
	password := b.password
	b.mu.Unlock()

	creds := steam.Credentials{}
	if !anonymous {
		creds.AccountName = username
		creds.Password = password
		if tf, err := b.loadTwoFactor(); err == nil {
			code, cerr := GenerateAuthCode(tf.SharedSecret, b.now())
			if cerr != nil {
				b.logger.Error("failed to generate auth code", "error", cerr)
			} else {
				creds.TwoFactorCode = code
			}
		} else {
			b.logger.Debug("no shared secret on disk, expecting code request", "error", err)
		}
	}

	if err := b.clients.User.LogOn(creds); err != nil {
		if errors.Is(err, steam.ErrAlreadyLoggedOn) {
			b.logger.Warn("logon attempted while already logged on")
			return
		}
		b.logger.Error("logon call failed", "error", err)
		b.signalConnect(err)
	}
}

func (b *Bot) handleLoggedOn(ev steam.LoggedOnEvent) {
	switch ev.Result {
	case steam.CauseOK:
		b.mu.Lock()
		if b.steamID == "" {
			b.steamID = ev.SteamID
		} else if ev.SteamID != "" && ev.SteamID != b.steamID {
			// 身份一经确立不再改变
			b.logger.Warn("platform id changed between sessions, keeping original",
				"original", b.steamID, "reported", ev.SteamID)
		}
		b.loggedOn = true
		b.loginAt = b.now()
		anonymous := b.anonymous
		name := b.canonicalNameLocked()
		b.mu.Unlock()

		b.logger.Info("logged into platform", "name", name)
		if anonymous {
			// 匿名账号没有 Web 会话，登录响应即完成
			b.signalConnect(nil)
		}
	case steam.CauseAccountLogonDenied, steam.CauseRevoked, steam.CauseInvalidLoginAuthCode:
		b.logger.Error("login rejected", "result", ev.Result.String())
		b.signalConnect(steam.NewError(ev.Result, ""))
	default:
		b.logger.Warn("unexpected logon response", "result", ev.Result.String())
		b.signalConnect(steam.NewError(ev.Result, ""))
	}
}

func (b *Bot) handleWebSession(ev steam.WebSessionEvent) {
	cookies := append([]string(nil), ev.Cookies...)

	b.mu.Lock()
	b.sessionID = ev.SessionID
	b.cookies = cookies
	b.webLoginAt = b.now()
	b.mu.Unlock()

	b.clients.Community.SetCookies(cookies)
	b.logger.Debug("web session established", "session_id", ev.SessionID)
	b.signalConnect(nil)
}

func (b *Bot) handleDisconnected(ev steam.DisconnectedEvent) {
	b.mu.Lock()
	b.loggedOn = false
	relog := b.relog
	b.relog = false
	b.mu.Unlock()

	b.logger.Warn("disconnected from platform", "cause", ev.Cause.String())

	// 主动重登引起的断线是预期内的，不作为连接故障上报
	if relog {
		b.doLogin()
		return
	}
	if b.onConnErr != nil {
		b.onConnErr(ev.Cause)
	}
}

func (b *Bot) handleOTPRequest(ev steam.OTPRequestEvent) {
	b.mu.Lock()
	if b.otpSubmit != nil {
		b.mu.Unlock()
		b.logger.Warn("duplicate code request, keeping first callback")
		return
	}
	b.otpSubmit = ev.Submit
	b.mu.Unlock()

	if ev.Domain != "" {
		b.logger.Warn("email code requested, waiting for manual entry", "domain", ev.Domain)
		return
	}

	tf, err := b.loadTwoFactor()
	if err != nil {
		b.logger.Error("code requested but no shared secret available", "error", err)
		b.Disconnect()
		return
	}

	generate := func() {
		code, gerr := GenerateAuthCode(tf.SharedSecret, b.now())
		if gerr != nil {
			b.logger.Error("failed to generate auth code", "error", gerr)
			return
		}
		b.SendOTP(code)
	}

	if ev.LastCodeWrong {
		b.logger.Warn("last code rejected, regenerating after cooldown", "cooldown", b.otpCooldown)
		time.AfterFunc(b.otpCooldown, generate)
		return
	}
	generate()
}

// SendOTP 提交验证码，消费未决的请求回调。
// 没有未决请求时仅记录日志。
func (b *Bot) SendOTP(code string) {
	b.mu.Lock()
	submit := b.otpSubmit
	b.otpSubmit = nil
	b.mu.Unlock()

	if submit == nil {
		b.logger.Warn("tried to send auth code without being asked")
		return
	}
	b.logger.Debug("submitting auth code")
	submit(code)
}

// signalConnect 向未决的 Connect 等待方投递结果，无等待方时丢弃
func (b *Bot) signalConnect(err error) {
	b.mu.Lock()
	waiter := b.waiter
	b.waiter = nil
	if waiter != nil {
		b.connecting = false
	}
	b.mu.Unlock()

	if waiter != nil {
		waiter <- err
	}
}

func (b *Bot) abandonWaiter(w chan error) {
	b.mu.Lock()
	if b.waiter == w {
		b.waiter = nil
		b.connecting = false
		// 重登等待超时后，迟到的断线事件不得再触发登录
		b.relog = false
	}
	b.mu.Unlock()
}

// loadTwoFactor 读取并缓存共享密钥文件
func (b *Bot) loadTwoFactor() (*TwoFactor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.twoFactor != nil {
		return b.twoFactor, nil
	}
	if b.anonymous {
		return nil, fmt.Errorf("anonymous account has no shared secret")
	}

	path := filepath.Join(b.dataDir, b.username+".2fa.json")
	tf, err := LoadTwoFactorFile(path)
	if err != nil {
		return nil, err
	}
	b.twoFactor = tf
	return tf, nil
}

// GetConfirmations 拉取待处理确认列表
func (b *Bot) GetConfirmations() ([]*steam.Confirmation, error) {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	tf, err := b.loadTwoFactor()
	if err != nil {
		return nil, fmt.Errorf("load identity secret: %w", err)
	}

	keyTime := b.now().Unix()
	key, err := GenerateConfirmationKey(tf.IdentitySecret, keyTime, "conf")
	if err != nil {
		return nil, err
	}
	return b.clients.Community.GetConfirmations(keyTime, key)
}

// AcceptConfirmation 批准单条确认
func (b *Bot) AcceptConfirmation(conf *steam.Confirmation) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	tf, err := b.loadTwoFactor()
	if err != nil {
		return fmt.Errorf("load identity secret: %w", err)
	}

	keyTime := b.now().Unix()
	allowKey, err := GenerateConfirmationKey(tf.IdentitySecret, keyTime, "allow")
	if err != nil {
		return err
	}

	b.logger.Info("accepting confirmation", "id", conf.ID, "title", conf.Title)
	if err := b.clients.Community.AcceptConfirmation(conf, keyTime, allowKey); err != nil {
		b.logger.Error("failed to accept confirmation", "id", conf.ID, "error", err)
		return err
	}
	return nil
}

// LoadInventory 拉取库存页，未给出的参数取默认值
func (b *Bot) LoadInventory(opts *steam.InventoryOptions) (*steam.Inventory, error) {
	if opts == nil || opts.AppID == 0 {
		return nil, ErrMissingInventoryApp
	}

	o := *opts
	if o.ContextID == 0 {
		o.ContextID = defaultContextID
	}
	if o.Count == 0 {
		o.Count = InventoryPageSize
	}
	if o.Language == "" {
		o.Language = defaultLanguage
	}

	b.mu.Lock()
	id := b.steamID
	hasWeb := len(b.cookies) > 0
	b.mu.Unlock()

	if !hasWeb {
		return nil, ErrNoWebSession
	}
	if id == "" {
		return nil, fmt.Errorf("identity not established")
	}
	return b.clients.Community.LoadInventory(id, &o)
}

// LoadInventoryContext 抓取账号的应用上下文数据
func (b *Bot) LoadInventoryContext() (map[string]any, error) {
	b.mu.Lock()
	id := b.steamID
	hasWeb := len(b.cookies) > 0
	b.mu.Unlock()

	if !hasWeb {
		return nil, ErrNoWebSession
	}
	if id == "" {
		return nil, fmt.Errorf("identity not established")
	}
	return b.clients.Community.LoadInventoryContext(id)
}

// ensureAPIKey 懒加载 API Key，刷新尝试受最小间隔限制
func (b *Bot) ensureAPIKey() error {
	b.mu.Lock()
	if b.apiKey != "" {
		b.mu.Unlock()
		return nil
	}
	cookies := append([]string(nil), b.cookies...)
	b.mu.Unlock()

	if len(cookies) == 0 {
		return ErrNoWebSession
	}
	if !b.webLimiter.Allow() {
		return ErrWebRefreshCooldown
	}

	key, err := b.clients.Trade.SetCookies(cookies)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAPIKey, err)
	}
	if key == "" {
		return ErrNoAPIKey
	}

	b.mu.Lock()
	b.apiKey = key
	b.mu.Unlock()
	b.logger.Info("api key loaded")
	return nil
}

// LoadAPIKey 返回账号的 API Key，必要时先拉取
func (b *Bot) LoadAPIKey() (string, error) {
	if err := b.ensureAPIKey(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apiKey, nil
}

// GetOffer 获取单个报价
func (b *Bot) GetOffer(id string) (*steam.TradeOffer, error) {
	if err := b.ensureAPIKey(); err != nil {
		return nil, err
	}
	return b.clients.Trade.GetOffer(id)
}

// GetActiveOffers 获取全部进行中的报价
func (b *Bot) GetActiveOffers() (sent, received []*steam.TradeOffer, err error) {
	if err := b.ensureAPIKey(); err != nil {
		return nil, nil, err
	}
	return b.clients.Trade.GetActiveOffers()
}

// AcceptOffer 接受报价
func (b *Bot) AcceptOffer(id string) (string, error) {
	if err := b.ensureAPIKey(); err != nil {
		return "", err
	}
	status, err := b.clients.Trade.AcceptOffer(id)
	if err != nil {
		b.logger.Error("failed to accept offer", "offer", id, "error", err)
		return "", err
	}
	b.logger.Info("offer accepted", "offer", id, "status", status)
	return status, nil
}

// CancelOffer 取消（或拒绝收到的）报价
func (b *Bot) CancelOffer(id string) error {
	if err := b.ensureAPIKey(); err != nil {
		return err
	}
	if err := b.clients.Trade.CancelOffer(id); err != nil {
		b.logger.Error("failed to cancel offer", "offer", id, "error", err)
		return err
	}
	b.logger.Info("offer cancelled", "offer", id)
	return nil
}

// GetOfferToken 获取本账号的报价令牌
func (b *Bot) GetOfferToken() (string, error) {
	if err := b.ensureAPIKey(); err != nil {
		return "", err
	}
	return b.clients.Trade.GetOfferToken()
}

// OfferOptions 创建报价的参数
type OfferOptions struct {
	Partner   string
	TradeURL  string
	Message   string
	BotItems  []steam.Asset
	UserItems []steam.Asset
}

// MakeOffer 创建并发送报价。
// 任一方处于托管期且报价涉及该方物品时拒绝发送。
func (b *Bot) MakeOffer(opts OfferOptions) (*steam.TradeOffer, error) {
	if err := b.ensureAPIKey(); err != nil {
		return nil, err
	}

	draft := &steam.OfferDraft{
		Partner:       opts.Partner,
		Token:         tokenFromTradeURL(opts.TradeURL),
		Message:       opts.Message,
		ItemsFromBot:  opts.BotItems,
		ItemsFromUser: opts.UserItems,
	}

	escrow, err := b.clients.Trade.GetEscrow(draft)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEscrowDetails, err)
	}
	if escrow == nil {
		return nil, ErrEscrowDetails
	}
	if len(draft.ItemsFromBot) > 0 && escrow.MyDays != 0 {
		return nil, fmt.Errorf("offer includes bot items while bot account has %d day escrow", escrow.MyDays)
	}
	if len(draft.ItemsFromUser) > 0 && escrow.TheirDays != 0 {
		return nil, fmt.Errorf("offer includes user items while user account has %d day escrow", escrow.TheirDays)
	}

	offer, err := b.clients.Trade.SendOffer(draft)
	if err != nil {
		b.logger.Error("failed to send offer", "partner", draft.Partner, "error", err)
		return nil, err
	}
	b.logger.Info("offer sent", "offer", offer.ID, "partner", draft.Partner)
	return offer, nil
}

// tokenFromTradeURL 从交易链接中提取报价令牌，解析失败返回空串
func tokenFromTradeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

// Username 返回规范化用户名
func (b *Bot) Username() string { return b.username }

// Anonymous 返回是否为匿名账号
func (b *Bot) Anonymous() bool { return b.anonymous }

// SteamID 返回已确立的平台 ID，未确立时为空
func (b *Bot) SteamID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.steamID
}

// DisplayName 返回账号展示名
func (b *Bot) DisplayName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayName
}

// LoggedOn 返回底层连接是否处于登录状态
func (b *Bot) LoggedOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loggedOn
}

// Connecting 返回是否有登录在进行中
func (b *Bot) Connecting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connecting
}

// Disabled 返回账号是否已停用
func (b *Bot) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// SetDisabled 设置停用标记
func (b *Bot) SetDisabled(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = v
}

// OTPPending 返回是否有未决的验证码请求
func (b *Bot) OTPPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.otpSubmit != nil
}

// LoginAt 返回最近一次登录成功时间
func (b *Bot) LoginAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginAt
}

// WebLoginAt 返回最近一次 Web 会话建立时间
func (b *Bot) WebLoginAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.webLoginAt
}

// CanonicalName 返回 "用户名 (平台 ID)" 形式的规范名
func (b *Bot) CanonicalName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canonicalNameLocked()
}

func (b *Bot) canonicalNameLocked() string {
	id := b.steamID
	if id == "" {
		id = PlaceholderSteamID
	}
	return fmt.Sprintf("%s (%s)", b.username, id)
}

// FullName 返回带展示名的完整名称
func (b *Bot) FullName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := b.displayName
	if name == "" {
		name = "Unnamed Bot"
	}
	return fmt.Sprintf("%s [%s]", name, b.canonicalNameLocked())
}
