package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/tpodo/internal/otp"
)

// PostgresOTPRepo はotp_codesテーブルを使うワンタイムコードのストア。
// 複数プロセスでAPIを動かす場合に使用する。
type PostgresOTPRepo struct {
	db *sql.DB
}

// NewPostgresOTPRepo はPostgresOTPRepoを生成する。
func NewPostgresOTPRepo(db *sql.DB) *PostgresOTPRepo {
	return &PostgresOTPRepo{db: db}
}

// Set はkeyにvalueをttlの有効期限付きで保存する。既存の値は上書きする。
func (r *PostgresOTPRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_codes (key, value, expires_at, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, attempts = 0, created_at = now()`,
		key, value, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

// Get はkeyの値を返す。存在しないか期限切れの場合はfalseを返す。
func (r *PostgresOTPRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM otp_codes WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load otp: %w", err)
	}
	return value, true, nil
}

// Delete はkeyを削除する。
func (r *PostgresOTPRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_codes WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

// IncrementAttempts はkeyの検証失敗回数を1増やして返す。
// 存在しないか期限切れの場合は0を返す。
func (r *PostgresOTPRepo) IncrementAttempts(ctx context.Context, key string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE otp_codes SET attempts = attempts + 1
		 WHERE key = $1 AND expires_at > now()
		 RETURNING attempts`,
		key,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	return attempts, nil
}

// compile-time interface check
var _ otp.Store = (*PostgresOTPRepo)(nil)
