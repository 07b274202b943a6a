// Package fleet 维护整支编队的账号注册表与待处理队列。
// 注册表是唯一的账号来源，调度循环与控制接口都通过它定位账号。
package fleet

import (
	"errors"
	"strings"
	"sync"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/bot"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

// steamIDPrefix 64 位平台 ID 的固定前缀
const steamIDPrefix = "7656"

// sessionInvalidMessages Web 会话失效时社区站点返回的既定错误文本
var sessionInvalidMessages = []string{
	"Not Logged In",
	"Must be logged in before trying to do anything with confirmations",
	"HTTP error 401",
	"HTTP error 403",
	"HTTP error 400",
	"Malformed response",
}

// softDisconnectCauses 断线后允许自动重连的原因
var softDisconnectCauses = map[steam.Cause]struct{}{
	steam.CauseDisconnected:       {},
	steam.CauseInvalid:            {},
	steam.CauseFail:               {},
	steam.CauseNoConnection:       {},
	steam.CauseServiceUnavailable: {},
	steam.CauseTryAnotherCM:       {},
}

// ClientFactory 为账号创建平台客户端集合
type ClientFactory func(username string) steam.Clients

// Registry 编队注册表
type Registry struct {
	logger  logger.Logger
	factory ClientFactory
	dataDir string

	mu         sync.RWMutex
	bots       []*bot.Bot
	byUsername map[string]*bot.Bot

	pendingReconnect *pendingQueue
	pendingConfirm   *pendingQueue
}

// New 创建空注册表
func New(factory ClientFactory, dataDir string, l logger.Logger) *Registry {
	return &Registry{
		logger:           l.Named("fleet"),
		factory:          factory,
		dataDir:          dataDir,
		byUsername:       make(map[string]*bot.Bot),
		pendingReconnect: newPendingQueue(),
		pendingConfirm:   newPendingQueue(),
	}
}

// Add 向编队添加账号并排队等待重连。
// 已停用的同名账号会被重新启用；已启用的返回 ErrBotExists。
func (r *Registry) Add(username, password string) (*bot.Bot, error) {
	uname := strings.ToLower(strings.TrimSpace(username))
	anonymous := uname == "" || uname == bot.AnonymousUsername
	if anonymous {
		uname = bot.AnonymousUsername
	}

	if !anonymous {
		if strings.HasPrefix(uname, steamIDPrefix) {
			return nil, ErrLoginWithID
		}
		if password == "" {
			return nil, ErrMissingPassword
		}
	}

	r.mu.Lock()
	if existing, ok := r.byUsername[uname]; ok {
		if !existing.Disabled() {
			r.mu.Unlock()
			return existing, ErrBotExists
		}
		existing.SetDisabled(false)
		r.mu.Unlock()

		r.pendingReconnect.Push(uname)
		r.logger.Info("re-enabled removed bot", "account", uname)
		return existing, nil
	}
	r.mu.Unlock()

	b := bot.New(bot.Config{
		Username: uname,
		Password: password,
		DataDir:  r.dataDir,
		OnConnectionError: func(cause steam.Cause) {
			r.handleConnectionError(uname, cause)
		},
	}, r.factory(uname), r.logger)

	r.mu.Lock()
	r.bots = append(r.bots, b)
	r.byUsername[uname] = b
	r.mu.Unlock()

	r.pendingReconnect.Push(uname)
	r.logger.Info("added bot to fleet", "account", uname)
	return b, nil
}

// handleConnectionError 断线回调，可恢复的原因重新排队等待重连
func (r *Registry) handleConnectionError(username string, cause steam.Cause) {
	b := r.Get(username, false)
	if b == nil {
		return
	}

	if _, soft := softDisconnectCauses[cause]; !soft {
		r.logger.Error("bot disconnected, not scheduling reconnect", "account", username, "cause", cause.String())
		return
	}

	r.logger.Warn("bot lost connection, scheduling reconnect", "account", username, "cause", cause.String())
	r.pendingReconnect.Push(username)
}

// Get 按用户名或平台 ID 查找账号，匹配不区分大小写。
// includeDisabled 为 false 时已停用的账号视为不存在。
func (r *Registry) Get(query string, includeDisabled bool) *bot.Bot {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byUsername[q]
	if !ok {
		for _, candidate := range r.bots {
			if candidate.SteamID() == q {
				b = candidate
				break
			}
		}
	}
	if b == nil {
		return nil
	}
	if b.Disabled() && !includeDisabled {
		return nil
	}
	return b
}

// GetAll 返回账号列表，按添加顺序排列
func (r *Registry) GetAll(filterOffline, includeDisabled bool) []*bot.Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*bot.Bot, 0, len(r.bots))
	for _, b := range r.bots {
		if b.Disabled() && !includeDisabled {
			continue
		}
		if filterOffline && !b.LoggedOn() {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Count 返回账号数量
func (r *Registry) Count(includeDisabled bool) int {
	return len(r.GetAll(false, includeDisabled))
}

// Remove 停用账号并断开连接。
// 账号保留在注册表中，重复移除只记录日志。
func (r *Registry) Remove(query string) error {
	b := r.Get(query, true)
	if b == nil {
		return ErrBotNotFound
	}
	if b.Disabled() {
		r.logger.Warn("bot already removed", "account", b.Username())
		return nil
	}

	b.SetDisabled(true)
	b.Disconnect()
	r.logger.Info("removed bot from fleet", "account", b.Username())
	return nil
}

// PushPendingReconnect 将账号排队等待重连
func (r *Registry) PushPendingReconnect(query string) error {
	b := r.Get(query, false)
	if b == nil {
		return ErrBotNotFound
	}
	r.pendingReconnect.Push(b.Username())
	return nil
}

// PopPendingReconnect 取出最近排队的待重连账号。
// 已停用或已不存在的账号被跳过。
func (r *Registry) PopPendingReconnect() *bot.Bot {
	return r.pop(r.pendingReconnect)
}

// PushPendingConfirmation 将账号排队等待确认处理
func (r *Registry) PushPendingConfirmation(query string) error {
	b := r.Get(query, false)
	if b == nil {
		return ErrBotNotFound
	}
	r.pendingConfirm.Push(b.Username())
	return nil
}

// PopPendingConfirmation 取出最近排队的待确认账号
func (r *Registry) PopPendingConfirmation() *bot.Bot {
	return r.pop(r.pendingConfirm)
}

func (r *Registry) pop(q *pendingQueue) *bot.Bot {
	for {
		name, ok := q.Pop()
		if !ok {
			return nil
		}
		if b := r.Get(name, false); b != nil {
			return b
		}
	}
}

// PendingReconnects 返回待重连队列长度
func (r *Registry) PendingReconnects() int {
	return r.pendingReconnect.Len()
}

// PendingConfirmations 返回待确认队列长度
func (r *Registry) PendingConfirmations() int {
	return r.pendingConfirm.Len()
}

// RelogIfNeeded 判断操作错误是否意味着会话失效，是则排队重连。
// 返回是否已安排重连。
func (r *Registry) RelogIfNeeded(b *bot.Bot, err error) bool {
	if err == nil || b == nil {
		return false
	}

	if b.LoggedOn() && !sessionInvalid(err) {
		return false
	}

	r.logger.Warn("bot session looks invalid, scheduling relogin",
		"account", b.Username(), "error", err)
	r.pendingReconnect.Push(b.Username())
	return true
}

// sessionInvalid 判断错误链中是否有既定的会话失效文本
func sessionInvalid(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		for _, known := range sessionInvalidMessages {
			if msg == known {
				return true
			}
		}
	}
	return false
}

// Shutdown 断开所有启用中的账号
func (r *Registry) Shutdown() {
	r.logger.Info("shutting down fleet")
	for _, b := range r.GetAll(false, false) {
		b.Disconnect()
	}
}
