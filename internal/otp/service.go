package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

// CodeLength はワンタイムコードの桁数。
const CodeLength = 6

// DefaultMaxAttempts はコード1件あたりの検証失敗回数の既定の上限。
const DefaultMaxAttempts = 5

// Config はワンタイムコード発行の設定。
type Config struct {
	TTL         time.Duration // コードの有効期間
	MaxAttempts int           // 検証失敗がこの回数に達したコードは無効にする。0以下は既定値
	DevMode     bool          // trueの場合は発行したコードをログに出力する
}

// Service はワンタイムコードの発行と検証を行う。
// コードはハッシュ化してStoreに保存し、検証に成功すると削除する（1回限り有効）。
type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(store Store, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{store: store, config: config, logger: logger}
}

// Issue はemail宛てのコードを新規発行し、以前のコードを無効にする。
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	key := storeKey(email)
	if err := s.store.Set(ctx, key, hashCode(code), s.config.TTL); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	if s.config.DevMode {
		s.logger.Info("確認コードを発行しました（開発モード）",
			slog.String("email", model.NormalizeEmail(email)),
			slog.String("otp", code),
		)
	}

	return code, nil
}

// Verify はemailとcodeの組が有効かを検証する。
// 有効な場合はコードを削除して再利用できないようにする。
// 失敗が上限回数に達した場合もコードを削除し、以降は正しいコードでも失敗する。
func (s *Service) Verify(ctx context.Context, email, code string) (bool, error) {
	key := storeKey(email)

	stored, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load otp: %w", err)
	}
	if !ok {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(hashCode(code))) != 1 {
		return false, s.recordFailure(ctx, key, email)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	return true, nil
}

func (s *Service) recordFailure(ctx context.Context, key, email string) error {
	attempts, err := s.store.IncrementAttempts(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to count otp attempt: %w", err)
	}
	if attempts < s.config.MaxAttempts {
		return nil
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to revoke otp: %w", err)
	}
	s.logger.Warn("検証失敗が上限に達したため確認コードを無効化しました",
		slog.String("email", model.NormalizeEmail(email)),
		slog.Int("attempts", attempts),
	)
	return nil
}

func storeKey(email string) string {
	return "otp:" + model.NormalizeEmail(email)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// generateCode は暗号的に安全な6桁の数字コードを生成する。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
