package cart

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ErrNotExist 本地存储中没有对应的键
var ErrNotExist = errors.New("cart: local entry not exist")

// LocalStore 客户端本地持久化的最小接口，值为已序列化的字节
type LocalStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore 进程内存储，用于测试和未配置目录的部署
type MemoryStore struct {
	items cmap.ConcurrentMap[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cmap.New[[]byte]()}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrNotExist
	}
	return v, nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.items.Set(key, buf)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.items.Remove(key)
	return nil
}

// FileStore 每个键一个文件，写入先落临时文件再 rename，保证读到的总是完整内容
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *FileStore) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return b, err
}

func (f *FileStore) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".cart-*")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *FileStore) Delete(key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
