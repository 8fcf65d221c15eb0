// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/security"
)

const (
	// MaxNameLength は表示名の最大文字数。
	MaxNameLength = 100
	// MaxAge は年齢として受け付ける最大値。
	MaxAge = 150
)

// ProfileUpdate はプロフィール更新の入力。nilのフィールドは変更しない。
// Ageに0以下を指定すると未設定に戻す。
type ProfileUpdate struct {
	Name   *string
	Phone  *string
	Age    *int
	Gender *string
}

// Service はユーザー管理のサービス層。
// プロフィールの参照・更新と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
	}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile は名前・電話番号・年齢・性別を更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := s.sanitizer.Text(*in.Name)
		if name == "" {
			return nil, model.NewValidationError("name は必須です")
		}
		if len([]rune(name)) > MaxNameLength {
			return nil, model.NewValidationError(fmt.Sprintf("name は%d文字以内で指定してください", MaxNameLength))
		}
		user.Name = name
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Age != nil {
		switch {
		case *in.Age <= 0:
			user.Age = nil
		case *in.Age > MaxAge:
			return nil, model.NewValidationError(fmt.Sprintf("age は%d以下で指定してください", MaxAge))
		default:
			age := *in.Age
			user.Age = &age
		}
	}
	if in.Gender != nil {
		user.Gender = s.sanitizer.Text(*in.Gender)
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: time_entries, projects, tasks, teams, people）
// 他のユーザーのタスクやチームに記載された担当者・メンバー情報は残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 2. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
