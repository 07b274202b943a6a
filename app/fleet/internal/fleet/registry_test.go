package fleet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/bot"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam/fake"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

const testSteamID = "76561198000000001"

func newTestRegistry(t *testing.T) (*Registry, *fake.Platform) {
	t.Helper()
	p := fake.NewPlatform()
	t.Cleanup(p.Close)

	r := New(p.Clients, t.TempDir(), logger.NewNoop())
	return r, p
}

func TestAddAndGet(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("Alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", b.Username())

	// 查找不区分大小写
	assert.Same(t, b, r.Get("ALICE", false))
	assert.Same(t, b, r.Get("  alice  ", false))
	assert.Nil(t, r.Get("bob", false))

	// 新账号自动排队等待重连
	assert.Equal(t, 1, r.PendingReconnects())
}

func TestAddValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Add("76561198000000001", "secret")
	assert.ErrorIs(t, err, ErrLoginWithID)

	_, err = r.Add("bob", "")
	assert.ErrorIs(t, err, ErrMissingPassword)
}

func TestAddAnonymous(t *testing.T) {
	r, _ := newTestRegistry(t)

	b, err := r.Add("", "")
	require.NoError(t, err)
	assert.Equal(t, bot.AnonymousUsername, b.Username())
	assert.True(t, b.Anonymous())
}

func TestAddDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)

	again, err := r.Add("alice", "secret")
	assert.ErrorIs(t, err, ErrBotExists)
	assert.Same(t, b, again)
}

func TestRemoveAndReenable(t *testing.T) {
	r, _ := newTestRegistry(t)

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)

	require.NoError(t, r.Remove("alice"))
	assert.True(t, b.Disabled())
	assert.Nil(t, r.Get("alice", false))
	assert.Same(t, b, r.Get("alice", true))

	// 重复移除不报错
	require.NoError(t, r.Remove("alice"))

	// 再次添加即重新启用，且复用原会话
	again, err := r.Add("alice", "secret")
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.False(t, b.Disabled())
}

func TestRemoveUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.ErrorIs(t, r.Remove("nobody"), ErrBotNotFound)
}

func TestGetBySteamID(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background(), ""))

	assert.Same(t, b, r.Get(testSteamID, false))
}

func TestGetAllFilters(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})
	p.AddAccount(&fake.Account{Username: "bob", Password: "secret", SteamID: "76561198000000002"})

	alice, err := r.Add("alice", "secret")
	require.NoError(t, err)
	_, err = r.Add("bob", "secret")
	require.NoError(t, err)
	_, err = r.Add("carol", "secret")
	require.NoError(t, err)

	require.NoError(t, alice.Connect(context.Background(), ""))
	require.NoError(t, r.Remove("carol"))

	assert.Len(t, r.GetAll(false, false), 2)
	assert.Len(t, r.GetAll(false, true), 3)
	assert.Len(t, r.GetAll(true, false), 1)
	assert.Equal(t, 2, r.Count(false))
}

func TestPendingQueuesLIFOAndSkipDisabled(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.Add("a", "pw")
	require.NoError(t, err)
	_, err = r.Add("b", "pw")
	require.NoError(t, err)
	c, err := r.Add("c", "pw")
	require.NoError(t, err)

	// 后添加的先出队，停用的被跳过
	require.NoError(t, r.Remove("b"))
	assert.Same(t, c, r.PopPendingReconnect())
	assert.Same(t, a, r.PopPendingReconnect())
	assert.Nil(t, r.PopPendingReconnect())
}

func TestPushPendingConfirmation(t *testing.T) {
	r, _ := newTestRegistry(t)

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)

	require.NoError(t, r.PushPendingConfirmation("alice"))
	require.NoError(t, r.PushPendingConfirmation("alice"))
	assert.Equal(t, 1, r.PendingConfirmations())

	assert.Same(t, b, r.PopPendingConfirmation())
	assert.Nil(t, r.PopPendingConfirmation())

	assert.ErrorIs(t, r.PushPendingConfirmation("nobody"), ErrBotNotFound)
}

func TestConnectionErrorRequeues(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background(), ""))
	for r.PopPendingReconnect() != nil {
	}

	// 可恢复的断线原因重新排队
	p.DropConnection("alice", steam.CauseNoConnection)
	assert.Eventually(t, func() bool { return r.PendingReconnects() == 1 }, time.Second, 10*time.Millisecond)
}

func TestVoluntaryRelogDoesNotRequeue(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background(), ""))
	for r.PopPendingReconnect() != nil {
	}

	// 登录状态下的重登会先注销，这种预期内的断线不得再次入队
	require.NoError(t, b.Connect(context.Background(), ""))

	assert.True(t, b.LoggedOn())
	assert.Equal(t, 0, r.PendingReconnects())
}

func TestRelogIfNeeded(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background(), ""))
	for r.PopPendingReconnect() != nil {
	}

	// 无错误不重连
	assert.False(t, r.RelogIfNeeded(b, nil))

	// 登录状态下的普通错误不重连
	assert.False(t, r.RelogIfNeeded(b, fmt.Errorf("some transient failure")))
	assert.Equal(t, 0, r.PendingReconnects())

	// 既定的会话失效文本触发重连，包装后的也识别
	err = fmt.Errorf("get confirmations: %w", steam.NewError(steam.CauseUnknown, "Not Logged In"))
	assert.True(t, r.RelogIfNeeded(b, err))
	assert.Equal(t, 1, r.PendingReconnects())
}

func TestRelogIfNeededWhenOffline(t *testing.T) {
	r, _ := newTestRegistry(t)

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	for r.PopPendingReconnect() != nil {
	}

	// 连接已断开时任何错误都触发重连
	assert.True(t, r.RelogIfNeeded(b, fmt.Errorf("anything")))
	assert.Equal(t, 1, r.PendingReconnects())
}

func TestShutdown(t *testing.T) {
	r, p := newTestRegistry(t)
	p.AddAccount(&fake.Account{Username: "alice", Password: "secret", SteamID: testSteamID})

	b, err := r.Add("alice", "secret")
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background(), ""))

	r.Shutdown()
	assert.Eventually(t, func() bool { return !b.LoggedOn() }, time.Second, 10*time.Millisecond)
}
