package fake

import (
	"sync"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

// eventBuffer 事件通道容量，需容纳验证码回调触发的级联事件
const eventBuffer = 64

type sessionClient struct {
	p        *Platform
	username string

	mu       sync.Mutex
	events   chan steam.Event
	loggedOn bool
	closed   bool
}

func newSessionClient(p *Platform, username string) *sessionClient {
	return &sessionClient{
		p:        p,
		username: username,
		events:   make(chan steam.Event, eventBuffer),
	}
}

func (c *sessionClient) Events() <-chan steam.Event { return c.events }

func (c *sessionClient) LogOn(creds steam.Credentials) error {
	c.mu.Lock()
	if c.loggedOn {
		c.mu.Unlock()
		return steam.ErrAlreadyLoggedOn
	}
	c.mu.Unlock()

	go c.process(creds)
	return nil
}

func (c *sessionClient) LogOff() error {
	c.mu.Lock()
	wasOn := c.loggedOn
	c.loggedOn = false
	c.mu.Unlock()

	if wasOn {
		c.emit(steam.DisconnectedEvent{Cause: steam.CauseDisconnected})
	}
	return nil
}

func (c *sessionClient) process(creds steam.Credentials) {
	if creds.AccountName == "" {
		c.finish(&Account{SteamID: c.p.nextAnonID()})
		return
	}

	acct := c.p.account(creds.AccountName)
	if acct == nil || acct.Password != creds.Password {
		c.emit(steam.LoggedOnEvent{Result: steam.CauseAccountLogonDenied})
		return
	}
	if acct.Silent {
		return
	}
	if acct.RejectWith != steam.CauseOK {
		c.emit(steam.LoggedOnEvent{Result: acct.RejectWith})
		return
	}

	if acct.RequireCode {
		if c.codeAccepted(acct, creds.TwoFactorCode) {
			c.finish(acct)
			return
		}
		c.requestCode(acct, creds.TwoFactorCode != "")
		return
	}

	c.finish(acct)
}

// requestCode 投递验证码请求，回调中校验后完成或再次请求
func (c *sessionClient) requestCode(acct *Account, lastWrong bool) {
	c.emit(steam.OTPRequestEvent{
		LastCodeWrong: lastWrong,
		Submit: func(code string) {
			if c.codeAccepted(acct, code) {
				c.finish(acct)
				return
			}
			c.requestCode(acct, true)
		},
	})
}

func (c *sessionClient) codeAccepted(acct *Account, code string) bool {
	if code == "" {
		return false
	}

	c.p.mu.Lock()
	if acct.WrongCodeOnce && !acct.wrongCodeUsed {
		acct.wrongCodeUsed = true
		c.p.mu.Unlock()
		return false
	}
	c.p.mu.Unlock()

	if acct.ValidateCode != nil {
		return acct.ValidateCode(code)
	}
	return true
}

// finish 按真实客户端的顺序投递登录成功后的事件
func (c *sessionClient) finish(acct *Account) {
	c.mu.Lock()
	c.loggedOn = true
	c.mu.Unlock()

	c.emit(steam.LoggedOnEvent{Result: steam.CauseOK, SteamID: acct.SteamID})
	if acct.DisplayName != "" {
		c.emit(steam.AccountInfoEvent{Name: acct.DisplayName})
	}
	if acct.Username != "" {
		c.emit(steam.WebSessionEvent{
			SessionID: "sess-" + acct.Username,
			Cookies:   []string{"sessionid=sess-" + acct.Username, "steamLogin=" + acct.SteamID},
		})
	}
}

func (c *sessionClient) drop(cause steam.Cause) {
	c.mu.Lock()
	c.loggedOn = false
	c.mu.Unlock()
	c.emit(steam.DisconnectedEvent{Cause: cause})
}

// emit 在持锁状态下投递，避免与 close 竞争
func (c *sessionClient) emit(ev steam.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

func (c *sessionClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.events)
}
