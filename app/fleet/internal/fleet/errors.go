package fleet

import "errors"

var (
	// ErrBotExists 账号已在编队中且处于启用状态
	ErrBotExists = errors.New("bot already added")

	// ErrBotNotFound 查询未命中任何账号
	ErrBotNotFound = errors.New("bot not found")

	// ErrLoginWithID 试图用 64 位平台 ID 而非用户名添加账号
	ErrLoginWithID = errors.New("cannot log in with a steam id, use the account name")

	// ErrMissingPassword 非匿名账号缺少密码
	ErrMissingPassword = errors.New("missing password")
)
