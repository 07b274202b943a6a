package bot

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// totpChars 平台验证码使用的字符表（去除了易混淆字符）
const totpChars = "23456789BCDFGHJKMNPQRTVWXY"

// totpPeriod 验证码时间窗口（秒）
const totpPeriod = 30

// totpDigits 验证码长度
const totpDigits = 5

// TwoFactor 本地共享密钥数据，与 <dataDir>/<username>.2fa.json 对应
type TwoFactor struct {
	SharedSecret   string `json:"shared_secret"`
	IdentitySecret string `json:"identity_secret"`
}

// LoadTwoFactorFile 读取并解析共享密钥文件
func LoadTwoFactorFile(path string) (*TwoFactor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read 2fa file: %w", err)
	}

	var tf TwoFactor
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse 2fa file: %w", err)
	}

	return &tf, nil
}

// GenerateAuthCode 由共享密钥计算当前时间窗口的一次性验证码
func GenerateAuthCode(sharedSecret string, t time.Time) (string, error) {
	key, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("decode shared secret: %w", err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.Unix()/totpPeriod))

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	digest := mac.Sum(nil)

	// 动态截断后按字符表逐位取模
	start := digest[len(digest)-1] & 0x0f
	fullcode := binary.BigEndian.Uint32(digest[start:start+4]) & 0x7fffffff

	code := make([]byte, totpDigits)
	for i := 0; i < totpDigits; i++ {
		code[i] = totpChars[fullcode%uint32(len(totpChars))]
		fullcode /= uint32(len(totpChars))
	}

	return string(code), nil
}

// GenerateConfirmationKey 计算确认操作的签名键
// tag 标识操作类型："conf"（列表）、"details"、"allow"、"cancel"
func GenerateConfirmationKey(identitySecret string, keyTime int64, tag string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(identitySecret)
	if err != nil {
		return "", fmt.Errorf("decode identity secret: %w", err)
	}

	buf := make([]byte, 8, 8+len(tag))
	binary.BigEndian.PutUint64(buf, uint64(keyTime))
	buf = append(buf, tag...)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
