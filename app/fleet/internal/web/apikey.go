package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrKeyExists 密钥已存在
var ErrKeyExists = errors.New("api key already exists")

// KeyStore 控制接口的访问密钥，持久化为 JSON 文件
type KeyStore struct {
	mu   sync.RWMutex
	path string
	keys map[string]struct{}
}

type keyFile struct {
	Keys []string `json:"keys"`
}

// NewKeyStore 加载密钥文件，文件不存在时返回空 store
func NewKeyStore(path string) (*KeyStore, error) {
	s := &KeyStore{path: path, keys: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read api key file: %w", err)
	}

	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse api key file: %w", err)
	}
	for _, k := range f.Keys {
		if k = strings.TrimSpace(k); k != "" {
			s.keys[k] = struct{}{}
		}
	}
	return s, nil
}

// Valid 校验密钥
func (s *KeyStore) Valid(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Count 返回密钥数量
func (s *KeyStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Generate 生成并持久化一个新密钥
func (s *KeyStore) Generate() (string, error) {
	key := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return "", err
	}
	return key, nil
}

// Add 登记已有密钥并持久化
func (s *KeyStore) Add(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty api key")
	}

	s.mu.Lock()
	if _, ok := s.keys[key]; ok {
		s.mu.Unlock()
		return ErrKeyExists
	}
	s.keys[key] = struct{}{}
	s.mu.Unlock()

	return s.save()
}

// EnsureKey 保证至少存在一个密钥，新建时返回该密钥
func (s *KeyStore) EnsureKey() (string, bool, error) {
	if s.Count() > 0 {
		return "", false, nil
	}
	key, err := s.Generate()
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

func (s *KeyStore) save() error {
	s.mu.RLock()
	f := keyFile{Keys: make([]string, 0, len(s.keys))}
	for k := range s.keys {
		f.Keys = append(f.Keys, k)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write api key file: %w", err)
	}
	return nil
}
