package bot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam/fake"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

const (
	testSteamID = "76561198000000001"
)

func newTestPlatform(t *testing.T) *fake.Platform {
	t.Helper()
	p := fake.NewPlatform()
	t.Cleanup(p.Close)
	return p
}

func newTestBot(t *testing.T, p *fake.Platform, cfg Config) *Bot {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	return New(cfg, p.Clients(strings.ToLower(cfg.Username)), logger.NewNoop())
}

func writeTwoFactor(t *testing.T, dir, username string) {
	t.Helper()
	data, err := json.Marshal(TwoFactor{SharedSecret: testSecret, IdentitySecret: testSecret})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, username+".2fa.json"), data, 0600))
}

func TestConnectSuccess(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{
		Username:    "alice",
		Password:    "secret",
		SteamID:     testSteamID,
		DisplayName: "Alice",
	})

	b := newTestBot(t, p, Config{Username: "Alice", Password: "secret"})

	require.NoError(t, b.Connect(context.Background(), ""))

	assert.True(t, b.LoggedOn())
	assert.False(t, b.Connecting())
	assert.Equal(t, "alice", b.Username())
	assert.Equal(t, testSteamID, b.SteamID())
	assert.Equal(t, "Alice", b.DisplayName())
	assert.False(t, b.LoginAt().IsZero())
	assert.False(t, b.WebLoginAt().IsZero())
	assert.Equal(t, "alice ("+testSteamID+")", b.CanonicalName())
}

func TestConnectWrongPassword(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "wrong"})

	err := b.Connect(context.Background(), "")
	require.Error(t, err)

	var serr *steam.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, steam.CauseAccountLogonDenied, serr.Cause)
	assert.False(t, b.LoggedOn())
}

func TestConnectPasswordOverride(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "wrong"})

	require.NoError(t, b.Connect(context.Background(), "secret"))
	assert.True(t, b.LoggedOn())
}

func TestConnectTimeout(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "mute", Password: "secret", Silent: true})

	b := newTestBot(t, p, Config{Username: "mute", Password: "secret"})
	b.connectTimeout = 100 * time.Millisecond

	err := b.Connect(context.Background(), "")
	require.ErrorIs(t, err, ErrConnectTimeout)
	assert.False(t, b.Connecting())
}

func TestRelogTimeoutSuppressesLateLogin(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})
	b.connectTimeout = 100 * time.Millisecond

	// 模拟注销请求得不到断线响应的重登
	b.mu.Lock()
	b.loggedOn = true
	b.mu.Unlock()

	err := b.Connect(context.Background(), "")
	require.ErrorIs(t, err, ErrConnectTimeout)

	// 超时后迟到的断线事件不得再触发登录
	b.handleDisconnected(steam.DisconnectedEvent{Cause: steam.CauseDisconnected})
	assert.Never(t, b.LoggedOn, 200*time.Millisecond, 20*time.Millisecond)
}

func TestConnectPending(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "mute", Password: "secret", Silent: true})

	b := newTestBot(t, p, Config{Username: "mute", Password: "secret"})
	b.connectTimeout = 300 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- b.Connect(context.Background(), "") }()

	assert.Eventually(t, b.Connecting, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, b.Connect(context.Background(), ""), ErrConnectPending)
	assert.ErrorIs(t, <-done, ErrConnectTimeout)
}

func TestConnectContextCancelled(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "mute", Password: "secret", Silent: true})

	b := newTestBot(t, p, Config{Username: "mute", Password: "secret"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, b.Connect(ctx, ""), context.DeadlineExceeded)
}

func TestRelogKeepsIdentity(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	require.NoError(t, b.Connect(context.Background(), ""))
	firstLogin := b.LoginAt()

	require.NoError(t, b.Connect(context.Background(), ""))
	assert.True(t, b.LoggedOn())
	assert.Equal(t, testSteamID, b.SteamID())
	assert.True(t, b.LoginAt().After(firstLogin) || b.LoginAt().Equal(firstLogin))
}

func TestAnonymousConnect(t *testing.T) {
	p := newTestPlatform(t)

	b := newTestBot(t, p, Config{Username: ""})

	assert.True(t, b.Anonymous())
	assert.Equal(t, AnonymousUsername, b.Username())

	// 匿名账号在登录响应时即完成，不等待 Web 会话
	require.NoError(t, b.Connect(context.Background(), ""))
	assert.True(t, b.LoggedOn())
	assert.True(t, b.WebLoginAt().IsZero())
	assert.NotEmpty(t, b.SteamID())
}

func TestSteamIDSetOnce(t *testing.T) {
	p := newTestPlatform(t)
	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	b.handleLoggedOn(steam.LoggedOnEvent{Result: steam.CauseOK, SteamID: testSteamID})
	b.handleLoggedOn(steam.LoggedOnEvent{Result: steam.CauseOK, SteamID: "76561198999999999"})

	assert.Equal(t, testSteamID, b.SteamID())
}

func TestOTPRetryAfterCooldown(t *testing.T) {
	p := newTestPlatform(t)
	dir := t.TempDir()
	writeTwoFactor(t, dir, "alice")

	p.AddAccount(&fake.Account{
		Username:    "alice",
		Password:    "secret",
		SteamID:     testSteamID,
		RequireCode: true,
		ValidateCode: func(code string) bool {
			want, err := GenerateAuthCode(testSecret, time.Now())
			return err == nil && code == want
		},
		WrongCodeOnce: true,
	})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret", DataDir: dir})
	b.connectTimeout = 2 * time.Second
	b.otpCooldown = 50 * time.Millisecond

	// 首个验证码被拒，冷却后重新生成并提交
	require.NoError(t, b.Connect(context.Background(), ""))
	assert.True(t, b.LoggedOn())
	assert.False(t, b.OTPPending())
}

func TestOTPDuplicateRequestKeepsFirst(t *testing.T) {
	p := newTestPlatform(t)
	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	got := make(chan string, 2)
	b.handleOTPRequest(steam.OTPRequestEvent{
		Domain: "example.com", // 邮箱验证码走人工路径，便于直接驱动
		Submit: func(code string) { got <- "first:" + code },
	})
	b.handleOTPRequest(steam.OTPRequestEvent{
		Domain: "example.com",
		Submit: func(code string) { got <- "second:" + code },
	})

	assert.True(t, b.OTPPending())
	b.SendOTP("ABC12")

	select {
	case v := <-got:
		assert.Equal(t, "first:ABC12", v)
	case <-time.After(time.Second):
		t.Fatal("first callback was not invoked")
	}
	assert.False(t, b.OTPPending())
}

func TestSendOTPWithoutRequest(t *testing.T) {
	p := newTestPlatform(t)
	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	// 没有未决请求时只记录日志
	b.SendOTP("ABC12")
	assert.False(t, b.OTPPending())
}

func TestConnectionErrorCallback(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	causes := make(chan steam.Cause, 1)
	b := newTestBot(t, p, Config{
		Username: "alice",
		Password: "secret",
		OnConnectionError: func(cause steam.Cause) {
			causes <- cause
		},
	})

	require.NoError(t, b.Connect(context.Background(), ""))

	p.DropConnection("alice", steam.CauseNoConnection)

	select {
	case cause := <-causes:
		assert.Equal(t, steam.CauseNoConnection, cause)
	case <-time.After(time.Second):
		t.Fatal("connection error callback was not invoked")
	}
	assert.Eventually(t, func() bool { return !b.LoggedOn() }, time.Second, 10*time.Millisecond)
}

func TestConfirmationsRoundTrip(t *testing.T) {
	p := newTestPlatform(t)
	dir := t.TempDir()
	writeTwoFactor(t, dir, "alice")
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})
	p.AddConfirmation("alice", &steam.Confirmation{ID: "c1", Title: "Trade with Bob", OfferID: "o1"})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret", DataDir: dir})
	require.NoError(t, b.Connect(context.Background(), ""))

	confs, err := b.GetConfirmations()
	require.NoError(t, err)
	require.Len(t, confs, 1)

	require.NoError(t, b.AcceptConfirmation(confs[0]))
	assert.Equal(t, []string{"c1"}, p.AcceptedConfirmations("alice"))
	assert.Equal(t, 0, p.PendingConfirmations("alice"))
}

func TestGetConfirmationsWithoutSecret(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})
	require.NoError(t, b.Connect(context.Background(), ""))

	_, err := b.GetConfirmations()
	require.Error(t, err)
}

func TestLoadAPIKey(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	// 无 Web 会话时拒绝
	_, err := b.LoadAPIKey()
	assert.ErrorIs(t, err, ErrNoWebSession)

	require.NoError(t, b.Connect(context.Background(), ""))

	key, err := b.LoadAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "FAKEKEY-alice", key)

	// 再次读取命中缓存
	again, err := b.LoadAPIKey()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadAPIKeyRefreshCooldown(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{
		Username:   "alice",
		Password:   "secret",
		SteamID:    testSteamID,
		FailAPIKey: errors.New("HTTP error 503"),
	})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})
	require.NoError(t, b.Connect(context.Background(), ""))

	_, err := b.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)

	// 失败后的下一次尝试落在最小间隔内
	_, err = b.LoadAPIKey()
	assert.ErrorIs(t, err, ErrWebRefreshCooldown)
}

func TestLoadInventory(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{
		Username:  "alice",
		Password:  "secret",
		SteamID:   testSteamID,
		Inventory: []steam.Item{{"assetid": "1"}, {"assetid": "2"}},
	})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	_, err := b.LoadInventory(nil)
	assert.ErrorIs(t, err, ErrMissingInventoryApp)

	_, err = b.LoadInventory(&steam.InventoryOptions{AppID: 730})
	assert.ErrorIs(t, err, ErrNoWebSession)

	require.NoError(t, b.Connect(context.Background(), ""))

	inv, err := b.LoadInventory(&steam.InventoryOptions{AppID: 730})
	require.NoError(t, err)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, 2, inv.TotalCount)
}

func TestMakeOfferEscrowRefusal(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{
		Username: "alice",
		Password: "secret",
		SteamID:  testSteamID,
		Escrow:   steam.EscrowDetails{MyDays: 15},
	})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})
	require.NoError(t, b.Connect(context.Background(), ""))

	// 本方有托管期且报价含本方物品时拒绝
	_, err := b.MakeOffer(OfferOptions{
		Partner:  "76561198000000002",
		BotItems: []steam.Asset{{AssetID: "1", AppID: "730", ContextID: "2", Amount: "1"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escrow")

	// 只收对方物品且对方无托管期时放行
	offer, err := b.MakeOffer(OfferOptions{
		Partner:   "76561198000000002",
		TradeURL:  "https://steamcommunity.com/tradeoffer/new/?partner=2&token=abcdefgh",
		UserItems: []steam.Asset{{AssetID: "9", AppID: "730", ContextID: "2", Amount: "1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, p.Offer(offer.ID))
	assert.Equal(t, "sent", offer.Status)
}

func TestOfferLifecycle(t *testing.T) {
	p := newTestPlatform(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})
	p.AddOffer(&steam.TradeOffer{ID: "o1", Partner: "76561198000000002"})
	p.AddOffer(&steam.TradeOffer{ID: "o2", IsOurOffer: true})

	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})
	require.NoError(t, b.Connect(context.Background(), ""))

	offer, err := b.GetOffer("o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", offer.ID)

	sent, received, err := b.GetActiveOffers()
	require.NoError(t, err)
	assert.Len(t, sent, 1)
	assert.Len(t, received, 1)

	status, err := b.AcceptOffer("o1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", status)

	require.NoError(t, b.CancelOffer("o2"))
	assert.Equal(t, "cancelled", p.Offer("o2").Status)
}

func TestTokenFromTradeURL(t *testing.T) {
	assert.Equal(t, "abcdefgh", tokenFromTradeURL("https://steamcommunity.com/tradeoffer/new/?partner=2&token=abcdefgh"))
	assert.Equal(t, "", tokenFromTradeURL("https://steamcommunity.com/tradeoffer/new/?partner=2"))
	assert.Equal(t, "", tokenFromTradeURL(""))
	assert.Equal(t, "", tokenFromTradeURL("://bad-url"))
}

func TestDisabledFlag(t *testing.T) {
	p := newTestPlatform(t)
	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	assert.False(t, b.Disabled())
	b.SetDisabled(true)
	assert.True(t, b.Disabled())
}

func TestFullName(t *testing.T) {
	p := newTestPlatform(t)
	b := newTestBot(t, p, Config{Username: "alice", Password: "secret"})

	assert.Equal(t, "Unnamed Bot [alice ("+PlaceholderSteamID+")]", b.FullName())
}
