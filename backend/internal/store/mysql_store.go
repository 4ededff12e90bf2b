package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 每个 block 一行。
// 主键是 key 的 sha256：key 是不透明字符串，不能受列排序规则（大小写、重音、尾随空格）
// 和索引长度的影响，原始 key 存在 block_key 里。
type blockRow struct {
	KeyHash   []byte `gorm:"primaryKey;type:binary(32)"`
	BlockKey  string `gorm:"type:mediumtext;not null"`
	Content   string `gorm:"type:mediumtext;not null"`
	UpdatedAt time.Time
}

func keyHash(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

func (blockRow) TableName() string { return "copy_blocks" }

type MySQLStore struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	cfg, err := sqlmysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	// updated_at 需要扫描成 time.Time
	cfg.ParseTime = true

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&blockRow{}); err != nil {
		return nil, fmt.Errorf("migrate copy_blocks: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Read(ctx context.Context) (Document, error) {
	return s.read(s.db.WithContext(ctx))
}

func (s *MySQLStore) read(db *gorm.DB) (Document, error) {
	var rows []blockRow
	if err := db.Select("block_key", "content").Find(&rows).Error; err != nil {
		return Document{}, fmt.Errorf("load copy_blocks: %w", err)
	}
	doc := NewDocument()
	for _, r := range rows {
		doc.Blocks[r.BlockKey] = r.Content
	}
	return doc, nil
}

func (s *MySQLStore) Merge(ctx context.Context, blocks map[string]string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(blocks) > 0 {
			now := time.Now()
			keys := make([]string, 0, len(blocks))
			for k := range blocks {
				keys = append(keys, k)
			}
			// 固定顺序，避免并发事务以不同顺序加行锁
			sort.Strings(keys)
			rows := make([]blockRow, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, blockRow{KeyHash: keyHash(k), BlockKey: k, Content: blocks[k], UpdatedAt: now})
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key_hash"}},
				DoUpdates: clause.AssignmentColumns([]string{"block_key", "content", "updated_at"}),
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("upsert copy_blocks: %w", err)
			}
		}
		doc, err := s.read(tx)
		if err != nil {
			return err
		}
		merged = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	return merged, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
