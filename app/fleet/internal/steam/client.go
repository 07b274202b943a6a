// Package steam 定义远端平台客户端的抽象边界。
// 具体的认证、交易、抓取协议由外部实现提供，本包只约定事件与操作形态。
package steam

// Credentials 登录凭证
// AccountName 为空表示匿名登录
type Credentials struct {
	AccountName   string
	Password      string
	TwoFactorCode string
}

// SessionClient 底层连接客户端
// 登录结果、Web 会话、断线、验证码请求均以事件形式异步投递
type SessionClient interface {
	// LogOn 发起登录，结果通过 LoggedOnEvent 投递
	// 已在登录状态时返回 ErrAlreadyLoggedOn
	LogOn(creds Credentials) error
	// LogOff 注销，完成后投递 DisconnectedEvent
	LogOff() error
	// Events 返回事件通道，客户端关闭时通道关闭
	Events() <-chan Event
}
