package steam

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLoggedOn 已在登录状态时重复调用 LogOn
	ErrAlreadyLoggedOn = errors.New("already logged on, cannot log on again")
)

// Cause 远端平台返回的结果码，对应登录响应与断线原因
type Cause int

const (
	CauseOK Cause = iota
	CauseAccountLogonDenied
	CauseRevoked
	CauseInvalidLoginAuthCode
	CauseDisconnected
	CauseInvalid
	CauseFail
	CauseNoConnection
	CauseServiceUnavailable
	CauseTryAnotherCM
	CauseUnknown
)

var causeNames = map[Cause]string{
	CauseOK:                   "OK",
	CauseAccountLogonDenied:   "AccountLogonDenied",
	CauseRevoked:              "Revoked",
	CauseInvalidLoginAuthCode: "InvalidLoginAuthCode",
	CauseDisconnected:         "Disconnected",
	CauseInvalid:              "Invalid",
	CauseFail:                 "Fail",
	CauseNoConnection:         "NoConnection",
	CauseServiceUnavailable:   "ServiceUnavailable",
	CauseTryAnotherCM:         "TryAnotherCM",
	CauseUnknown:              "Unknown",
}

// String 返回结果码名称
func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cause(%d)", int(c))
}

// Error 远端客户端返回的类型化错误
// Message 为空时使用结果码名称
type Error struct {
	Cause   Cause
	Message string
}

// NewError 创建类型化错误
func NewError(cause Cause, message string) *Error {
	return &Error{Cause: cause, Message: message}
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Cause.String()
}
