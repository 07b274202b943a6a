package steam

// Event 会话客户端的上行事件
// 所有事件通过 SessionClient.Events 投递，由 Bot 的事件循环串行处理
type Event interface {
	isEvent()
}

// LoggedOnEvent 登录响应
type LoggedOnEvent struct {
	Result  Cause
	SteamID string // Result 为 OK 时有效
}

// WebSessionEvent Web 会话建立，携带可用于社区/交易操作的 Cookie
type WebSessionEvent struct {
	SessionID string
	Cookies   []string
}

// DisconnectedEvent 底层连接断开
type DisconnectedEvent struct {
	Cause Cause
}

// OTPRequestEvent 平台请求一次性验证码
// Domain 非空表示邮箱验证码，需人工处理；否则可由本地共享密钥计算
type OTPRequestEvent struct {
	Domain        string
	LastCodeWrong bool
	Submit        func(code string)
}

// AccountInfoEvent 账号展示名更新
type AccountInfoEvent struct {
	Name string
}

func (LoggedOnEvent) isEvent()     {}
func (WebSessionEvent) isEvent()   {}
func (DisconnectedEvent) isEvent() {}
func (OTPRequestEvent) isEvent()   {}
func (AccountInfoEvent) isEvent()  {}
