package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig はコネクションプールの設定。ゼロ値の項目はdatabase/sqlの既定のままにする。
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Option はOpenの挙動を変更する。
type Option func(*PoolConfig)

// WithPool はコネクションプールの設定をまとめて指定する。
func WithPool(pc PoolConfig) Option {
	return func(c *PoolConfig) { *c = pc }
}

// WithMaxOpenConns は同時接続数の上限を指定する。
func WithMaxOpenConns(n int) Option {
	return func(c *PoolConfig) { c.MaxOpenConns = n }
}

// Open はPostgreSQLデータベース接続を開き、プール設定を反映する。
// sql.Openは接続を試行しないため、疎通確認は呼び出し側でPingContextを使う。
func Open(databaseURL string, opts ...Option) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("failed to open database: empty database URL")
	}

	var pc PoolConfig
	for _, opt := range opts {
		opt(&pc)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	applyPool(db, pc)

	return db, nil
}

func applyPool(db *sql.DB, pc PoolConfig) {
	if pc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pc.MaxOpenConns)
	}
	if pc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pc.ConnMaxLifetime)
	}
	if pc.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pc.ConnMaxIdleTime)
	}
}
