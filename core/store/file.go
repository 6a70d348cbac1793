package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const tokenFileName = "token.json"

// tokenFile 令牌落盘格式。
type tokenFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// FileTokenStore 把令牌保存为配置目录下的 JSON 文件。
type FileTokenStore struct {
	dir string
}

// NewFileTokenStore 创建文件存储，dir 为空时使用默认配置目录。
func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &FileTokenStore{dir: dir}
}

// DefaultConfigDir 返回默认配置目录（尊重 XDG_CONFIG_HOME）。
func DefaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "essaymate")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "essaymate")
}

func (s *FileTokenStore) path() string {
	return filepath.Join(s.dir, tokenFileName)
}

// SaveToken 持久化令牌，目录不存在时自动创建。
func (s *FileTokenStore) SaveToken(token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenFile{Token: token, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0o600)
}

// LoadToken 读取持久化令牌，文件不存在或为空时返回 ErrTokenNotFound。
func (s *FileTokenStore) LoadToken() (string, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrTokenNotFound
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", err
	}
	if tf.Token == "" {
		return "", ErrTokenNotFound
	}
	return tf.Token, nil
}

// ClearToken 删除持久化令牌，文件不存在视为成功。
func (s *FileTokenStore) ClearToken() error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
