package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
)

// legacyStore は旧JSONファイルストア（{"users": [...]}）の形式。
type legacyStore struct {
	Users []legacyUser `json:"users"`
}

type legacyUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"` // bcryptハッシュ
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// ImportResult はインポート結果の件数。
type ImportResult struct {
	Imported int
	Skipped  int
	Failed   int
}

// ImportLegacyUsers は旧JSONファイルストアのユーザーを取り込む。
// パスワードはbcryptハッシュのまま保存する。既に登録済みのメールアドレスはスキップする。
// 1件ごとの失敗はログに記録して処理を続ける。
func ImportLegacyUsers(ctx context.Context, r io.Reader, users repository.UserRepository, logger *slog.Logger) (*ImportResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var store legacyStore
	if err := json.NewDecoder(r).Decode(&store); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("JSONの解析に失敗しました: %w", err)
	}

	logger.Info("旧データのユーザーを読み込みました", slog.Int("count", len(store.Users)))

	result := &ImportResult{}
	for _, lu := range store.Users {
		u, err := lu.toUser()
		if err != nil {
			logger.Warn("ユーザーをスキップしました",
				slog.String("id", lu.ID),
				slog.String("reason", err.Error()),
			)
			result.Skipped++
			continue
		}

		existing, err := users.FindByEmail(ctx, u.Email)
		if err != nil {
			return result, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if err := users.Create(ctx, u); err != nil {
			logger.Error("ユーザーの登録に失敗しました",
				slog.String("email", u.Email),
				slog.String("error", err.Error()),
			)
			result.Failed++
			continue
		}
		result.Imported++
	}

	logger.Info("ユーザーのインポートが完了しました",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func (lu legacyUser) toUser() (*model.User, error) {
	email := model.NormalizeEmail(lu.Email)
	if email == "" {
		return nil, errors.New("メールアドレスがありません")
	}

	// 旧ストアのIDがUUIDでなければ採番し直す
	id := lu.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}

	role := model.RoleUser
	if model.Role(lu.Role) == model.RoleAdmin {
		role = model.RoleAdmin
	}

	created := time.Now().UTC()
	if lu.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, lu.CreatedAt); err == nil {
			created = t.UTC()
		}
	}

	return &model.User{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(lu.Name),
		PasswordHash: lu.Password,
		Role:         role,
		CreatedAt:    created,
		UpdatedAt:    created,
	}, nil
}
