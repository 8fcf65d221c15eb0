// Package auth はパスワード認証、セッション管理、初期セットアップ、
// ワンタイムコードによるパスワード再設定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/tpodo/internal/metrics"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// OTPIssuer はワンタイムコードの発行と検証のインターフェース。
// otp.Serviceが実装する。
type OTPIssuer interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	otp         OTPIssuer
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	otp OTPIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		otp:         otp,
		metrics:     collector,
		config:      config,
	}
}

// Credentials は登録・セットアップの入力。
type Credentials struct {
	Email    string
	Password string
	Name     string
}

// Register は一般ユーザーを登録する。
func (s *Service) Register(ctx context.Context, in Credentials) (*model.User, error) {
	return s.createUser(ctx, in, model.RoleUser)
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		slog.Warn("login failed", slog.String("email", email))
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser は認証済みユーザーIDからユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// SetupRequired はユーザーが1人も登録されていないかを返す。
func (s *Service) SetupRequired(ctx context.Context) (bool, error) {
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n == 0, nil
}

// Setup は最初の管理者を作成する。既にユーザーがいる場合はSETUP_COMPLETEDを返す。
func (s *Service) Setup(ctx context.Context, in Credentials) (*model.User, error) {
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, model.NewSetupCompletedError()
	}
	return s.createUser(ctx, in, model.RoleAdmin)
}

// CreateAdmin は管理者ユーザーを作成する。CLIから利用する。
func (s *Service) CreateAdmin(ctx context.Context, in Credentials) (*model.User, error) {
	return s.createUser(ctx, in, model.RoleAdmin)
}

// EnsureAdmin は指定メールアドレスのユーザーが無ければ管理者として作成する。
// 既に存在する場合は何もせずfalseを返す。
func (s *Service) EnsureAdmin(ctx context.Context, in Credentials) (bool, error) {
	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.createUser(ctx, in, model.RoleAdmin); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RequestOTP はパスワード再設定用の確認コードを発行する。
// アカウントの有無を推測されないよう、未登録のメールアドレスでもエラーにしない。
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.NewValidationError("email は必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("otp requested for unknown email")
		return nil
	}

	if _, err := s.otp.Issue(ctx, email); err != nil {
		return fmt.Errorf("failed to issue otp: %w", err)
	}
	s.metrics.RecordOTPIssued()
	return nil
}

// ResetPassword は確認コードを検証してパスワードを更新し、全セッションを破棄する。
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return model.NewWeakPasswordError(MinPasswordLength)
	}
	email = model.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return model.NewInvalidOTPError()
	}

	ok, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if !ok {
		return model.NewInvalidOTPError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewInvalidOTPError()
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword はbcryptハッシュとパスワードが一致するかを返す。
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Service) createUser(ctx context.Context, in Credentials, role model.Role) (*model.User, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, model.NewValidationError("email は必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("email の形式が正しくありません")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, model.NewWeakPasswordError(MinPasswordLength)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
