// Package entry は作業記録の作成・更新・削除のドメインロジックを提供する。
// 日時はRFC 3339形式の文字列で受け取り、保存前に検証する。
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tpodo/internal/metrics"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/security"
)

// MaxTitleLength はタイトルの最大文字数。
const MaxTitleLength = 500

// CreateInput は作業記録作成の入力。
type CreateInput struct {
	Title     string
	ProjectID *string
	TaskID    *string
	TeamID    *string
	Start     string
	End       *string
	Billable  bool
}

// UpdateInput は作業記録更新の入力。nilのフィールドは変更しない。
// ProjectID・TaskID・TeamIDに空文字列を指定すると紐付けを解除する。
type UpdateInput struct {
	Title     *string
	ProjectID *string
	TaskID    *string
	TeamID    *string
	Start     *string
	End       *string
	Billable  *bool
}

// Service は作業記録のサービス層。
type Service struct {
	entries   repository.EntryRepository
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	teams     repository.TeamRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	entries repository.EntryRepository,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	teams repository.TeamRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		entries:   entries,
		projects:  projects,
		tasks:     tasks,
		teams:     teams,
		users:     users,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// ParseTimestamp はRFC 3339形式の日時を解析する。
// 解析できない場合はINVALID_TIMESTAMPエラーを返す。
func ParseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, model.NewInvalidTimestampError(field, value)
	}
	return t, nil
}

// ParseRange は省略可能な期間指定を解析する。両方指定された場合はto >= fromを要求する。
func ParseRange(from, to string) (*time.Time, *time.Time, error) {
	var fromT, toT *time.Time
	if from != "" {
		t, err := ParseTimestamp("from", from)
		if err != nil {
			return nil, nil, err
		}
		fromT = &t
	}
	if to != "" {
		t, err := ParseTimestamp("to", to)
		if err != nil {
			return nil, nil, err
		}
		toT = &t
	}
	if fromT != nil && toT != nil && toT.Before(*fromT) {
		return nil, nil, model.NewInvalidRangeError()
	}
	return fromT, toT, nil
}

// List はユーザーの作業記録を開始時刻順に返す。from/toはRFC 3339形式で省略可能。
func (s *Service) List(ctx context.Context, userID, from, to string) ([]model.TimeEntry, error) {
	fromT, toT, err := ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByUser(ctx, userID, fromT, toT)
	if err != nil {
		return nil, fmt.Errorf("作業記録一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// Create は作業記録を作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.TimeEntry, error) {
	if strings.TrimSpace(in.Start) == "" {
		return nil, model.NewValidationError("start は必須です")
	}
	start, err := ParseTimestamp("start", in.Start)
	if err != nil {
		return nil, err
	}
	end, err := s.parseEnd(in.End)
	if err != nil {
		return nil, err
	}
	if end != nil && end.Before(start) {
		return nil, model.NewInvalidRangeError()
	}

	title, err := s.cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}

	now := s.now()
	e := &model.TimeEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		ProjectID: normalizeRef(in.ProjectID),
		TaskID:    normalizeRef(in.TaskID),
		TeamID:    normalizeRef(in.TeamID),
		Start:     start,
		End:       end,
		Billable:  in.Billable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.checkRefs(ctx, userID, entryRefs{ProjectID: e.ProjectID, TaskID: e.TaskID, TeamID: e.TeamID}); err != nil {
		return nil, err
	}

	if err := s.entries.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("作業記録の作成に失敗しました: %w", err)
	}
	s.metrics.RecordEntryCreated()

	return e, nil
}

// Update は作業記録を部分更新する。他人の記録は存在しないものとして扱う。
func (s *Service) Update(ctx context.Context, userID, entryID string, in UpdateInput) (*model.TimeEntry, error) {
	e, err := s.findOwned(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := s.cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		e.Title = title
	}
	if in.Start != nil {
		start, err := ParseTimestamp("start", *in.Start)
		if err != nil {
			return nil, err
		}
		e.Start = start
	}
	if in.End != nil {
		end, err := s.parseEnd(in.End)
		if err != nil {
			return nil, err
		}
		e.End = end
	}
	if e.End != nil && e.End.Before(e.Start) {
		return nil, model.NewInvalidRangeError()
	}
	// 変更された紐付け先だけを検証する
	var refs entryRefs
	if in.ProjectID != nil {
		e.ProjectID = normalizeRef(in.ProjectID)
		refs.ProjectID = e.ProjectID
	}
	if in.TaskID != nil {
		e.TaskID = normalizeRef(in.TaskID)
		refs.TaskID = e.TaskID
	}
	if in.TeamID != nil {
		e.TeamID = normalizeRef(in.TeamID)
		refs.TeamID = e.TeamID
	}
	if in.Billable != nil {
		e.Billable = *in.Billable
	}
	if err := s.checkRefs(ctx, userID, refs); err != nil {
		return nil, err
	}

	e.UpdatedAt = s.now()
	if err := s.entries.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("作業記録の更新に失敗しました: %w", err)
	}
	return e, nil
}

// Delete は作業記録を削除する。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if _, err := s.findOwned(ctx, userID, entryID); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("作業記録の削除に失敗しました: %w", err)
	}
	slog.Info("作業記録を削除しました",
		slog.String("user_id", userID),
		slog.String("entry_id", entryID),
	)
	return nil
}

func (s *Service) findOwned(ctx context.Context, userID, entryID string) (*model.TimeEntry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	e, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("作業記録の取得に失敗しました: %w", err)
	}
	if e == nil || e.UserID != userID {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	return e, nil
}

// parseEnd は終了日時を解析する。nilまたは空文字列は計測中（終了なし）を表す。
func (s *Service) parseEnd(end *string) (*time.Time, error) {
	if end == nil || strings.TrimSpace(*end) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp("end", *end)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) cleanTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if s.sanitizer != nil {
		title = s.sanitizer.Text(raw)
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", model.NewValidationError(fmt.Sprintf("title は%d文字以内で指定してください", MaxTitleLength))
	}
	return title, nil
}

// entryRefs は検証対象の紐付け先。nilのものは検証しない。
type entryRefs struct {
	ProjectID *string
	TaskID    *string
	TeamID    *string
}

// checkRefs は紐付け先がユーザーの参照できるものかを確認する。
// プロジェクトは作成者、タスクは作成者か担当者、チームは作成者かメンバーに限る。
// 参照できないものは存在しないものとして扱う。
func (s *Service) checkRefs(ctx context.Context, userID string, refs entryRefs) error {
	if refs.ProjectID != nil && s.projects != nil {
		if _, err := uuid.Parse(*refs.ProjectID); err != nil {
			return model.NewProjectNotFoundError(*refs.ProjectID)
		}
		p, err := s.projects.FindByID(ctx, *refs.ProjectID)
		if err != nil {
			return fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
		}
		if p == nil || p.OwnerID != userID {
			return model.NewProjectNotFoundError(*refs.ProjectID)
		}
	}

	var user *model.User
	loadUser := func() (*model.User, error) {
		if user != nil || s.users == nil {
			return user, nil
		}
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		user = u
		return user, nil
	}

	if refs.TaskID != nil && s.tasks != nil {
		if _, err := uuid.Parse(*refs.TaskID); err != nil {
			return model.NewTaskNotFoundError(*refs.TaskID)
		}
		t, err := s.tasks.FindByID(ctx, *refs.TaskID)
		if err != nil {
			return fmt.Errorf("タスクの取得に失敗しました: %w", err)
		}
		if t == nil {
			return model.NewTaskNotFoundError(*refs.TaskID)
		}
		if t.OwnerID != userID {
			u, err := loadUser()
			if err != nil {
				return err
			}
			if !t.VisibleTo(u) {
				return model.NewTaskNotFoundError(*refs.TaskID)
			}
		}
	}

	if refs.TeamID != nil && s.teams != nil {
		if _, err := uuid.Parse(*refs.TeamID); err != nil {
			return model.NewTeamNotFoundError(*refs.TeamID)
		}
		t, err := s.teams.FindByID(ctx, *refs.TeamID)
		if err != nil {
			return fmt.Errorf("チームの取得に失敗しました: %w", err)
		}
		if t == nil {
			return model.NewTeamNotFoundError(*refs.TeamID)
		}
		if t.OwnerID != userID {
			u, err := loadUser()
			if err != nil {
				return err
			}
			if u == nil || !t.HasMember(u.Email) {
				return model.NewTeamNotFoundError(*refs.TeamID)
			}
		}
	}
	return nil
}

// normalizeRef は空白のみのIDをnilに変換する。
func normalizeRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}
