package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

const DefaultPath = "./data/copy.json"

// FileStore 把文档整体序列化到单个 JSON 文件。
// 每次写入都完整重写文件（临时文件 + rename），读-合并-写在 mu 内完成。
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &FileStore{path: path}
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

// 目录或文件不存在时创建 {"blocks":{}}；已存在则不动
func (s *FileStore) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	return s.write(NewDocument())
}

func (s *FileStore) Read(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Merge(ctx context.Context, blocks map[string]string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return Document{}, err
	}
	doc.Apply(blocks)
	if err := s.write(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (Document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// 启动后被外部删除：按空文档处理，下一次写入会重新创建
			return NewDocument(), nil
		}
		return Document{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		// 不能静默重置，否则下一次写入会覆盖掉原有内容
		return Document{}, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, s.path, err)
	}
	if doc.Blocks == nil {
		doc.Blocks = make(map[string]string)
	}
	return doc, nil
}

func (s *FileStore) write(doc Document) error {
	if doc.Blocks == nil {
		doc.Blocks = make(map[string]string)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// 内容是 HTML，保持文件可读
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := atomic.WriteFile(s.path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
