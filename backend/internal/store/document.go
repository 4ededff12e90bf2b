package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 整个部署只有一份文档：{"blocks": {<key>: <content>}}
type Document struct {
	Blocks map[string]string `json:"blocks"`
}

func NewDocument() Document {
	return Document{Blocks: make(map[string]string)}
}

// Apply 按 key 合并（last-write-wins）：incoming 中出现的 key 覆盖旧值，其余 key 不动
func (d *Document) Apply(blocks map[string]string) {
	if d.Blocks == nil {
		d.Blocks = make(map[string]string, len(blocks))
	}
	for k, v := range blocks {
		d.Blocks[k] = v
	}
}

func (d Document) Clone() Document {
	out := Document{Blocks: make(map[string]string, len(d.Blocks))}
	for k, v := range d.Blocks {
		out.Blocks[k] = v
	}
	return out
}

// Store 是文档存储的抽象，不同后端各自保证 read-merge-write 串行
type Store interface {
	// Read 返回完整文档；从未写过时返回空文档而不是错误
	Read(ctx context.Context) (Document, error)
	// Merge 把部分 blocks 合并进持久化文档，返回前必须已经落盘/提交
	Merge(ctx context.Context, blocks map[string]string) (Document, error)
	Close() error
}

const (
	DriverFile     = "file"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

var (
	ErrCorruptDocument = errors.New("CORRUPT_DOCUMENT")
	ErrUnknownDriver   = errors.New("UNKNOWN_STORE_DRIVER")
)

type Options struct {
	Driver string
	// file 后端使用
	Path string
	// mysql / postgres 后端使用
	DSN string
}

// Open 按 driver 打开（必要时创建）存储，初始化是显式且幂等的
func Open(ctx context.Context, opt Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Driver)) {
	case "", DriverFile:
		s, err := NewFileStore(opt.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMySQL:
		s, err := NewMySQLStore(ctx, opt.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres, "pgx":
		s, err := NewPostgresStore(ctx, opt.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opt.Driver)
	}
}
