// Package team はチーム・人物名簿・チームレポートのドメインロジックを提供する。
package team

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tpodo/internal/entry"
	"github.com/hitoshi/tpodo/internal/metrics"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/security"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

// MaxNameLength はチーム名・人物名の最大文字数。
const MaxNameLength = 200

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TeamInput はチーム作成の入力。
type TeamInput struct {
	Name        string
	Description string
	Color       string
	Visibility  string
	Members     model.Members
	Workflow    model.Workflow
}

// TeamUpdate はチーム更新の入力。nilのフィールドは変更しない。
type TeamUpdate struct {
	Name        *string
	Description *string
	Color       *string
	Visibility  *string
	Members     *model.Members
	Workflow    *model.Workflow
}

// PersonInput は人物登録の入力。
type PersonInput struct {
	Name       string
	Email      string
	Role       string
	Department string
}

// Report はチームレポートの結果。
type Report struct {
	Team    *model.Team
	Range   timesheet.Range
	Members []timesheet.MemberReport
}

// Service はチームと人物名簿のサービス層。
type Service struct {
	teams     repository.TeamRepository
	people    repository.PersonRepository
	users     repository.UserRepository
	entries   repository.EntryRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	loc       *time.Location
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locはレポート期間省略時に「今日」を決めるタイムゾーン。
func NewService(
	teams repository.TeamRepository,
	people repository.PersonRepository,
	users repository.UserRepository,
	entries repository.EntryRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	loc *time.Location,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		teams:     teams,
		people:    people,
		users:     users,
		entries:   entries,
		sanitizer: sanitizer,
		metrics:   collector,
		loc:       loc,
		now:       time.Now,
	}
}

// ListTeams はユーザーが作成したチームを返す。
func (s *Service) ListTeams(ctx context.Context, userID string) ([]*model.Team, error) {
	teams, err := s.teams.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
	}
	return teams, nil
}

// CreateTeam はチームを作成する。色と公開範囲は省略時に既定値を使う。
func (s *Service) CreateTeam(ctx context.Context, userID string, in TeamInput) (*model.Team, error) {
	name, err := s.cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	color, err := parseColor(in.Color)
	if err != nil {
		return nil, err
	}
	visibility, err := parseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Team{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        name,
		Description: s.sanitizer.RichText(in.Description),
		Color:       color,
		Visibility:  visibility,
		Members:     s.cleanMembers(in.Members),
		Workflow:    in.Workflow.Normalize(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	slog.Info("チームを作成しました",
		slog.String("user_id", userID),
		slog.String("team_id", t.ID),
		slog.Int("members", len(t.Members)),
	)
	return t, nil
}

// UpdateTeam はチームを部分更新する。作成者のみ更新できる。
func (s *Service) UpdateTeam(ctx context.Context, userID, teamID string, in TeamUpdate) (*model.Team, error) {
	t, err := s.findOwnedTeam(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name, err := s.cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = s.sanitizer.RichText(*in.Description)
	}
	if in.Color != nil {
		color, err := parseColor(*in.Color)
		if err != nil {
			return nil, err
		}
		t.Color = color
	}
	if in.Visibility != nil {
		visibility, err := parseVisibility(*in.Visibility)
		if err != nil {
			return nil, err
		}
		t.Visibility = visibility
	}
	if in.Members != nil {
		t.Members = s.cleanMembers(*in.Members)
	}
	if in.Workflow != nil {
		t.Workflow = in.Workflow.Normalize()
	}

	t.UpdatedAt = s.now()
	if err := s.teams.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("チームの更新に失敗しました: %w", err)
	}
	return t, nil
}

// DeleteTeam はチームを削除する。
func (s *Service) DeleteTeam(ctx context.Context, userID, teamID string) error {
	if _, err := s.findOwnedTeam(ctx, userID, teamID); err != nil {
		return err
	}
	if err := s.teams.Delete(ctx, teamID); err != nil {
		return fmt.Errorf("チームの削除に失敗しました: %w", err)
	}
	return nil
}

// Report はチームメンバーごとの作業時間を集計する。
// from/toはRFC 3339形式で、省略時は今日の0時から現在までを対象とする。
func (s *Service) Report(ctx context.Context, userID, teamID, from, to string) (*Report, error) {
	started := time.Now()
	defer func() { s.metrics.RecordReportLatency("team", time.Since(started)) }()

	t, err := s.findVisibleTeam(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := timesheet.DefaultReportRange(now, s.loc)
	fromT, toT, err := entry.ParseRange(from, to)
	if err != nil {
		return nil, err
	}
	if fromT != nil {
		r.From = *fromT
	}
	if toT != nil {
		r.To = *toT
	}
	if r.To.Before(r.From) {
		return nil, model.NewInvalidRangeError()
	}

	listEntries := func(ctx context.Context, memberUserID string) ([]model.TimeEntry, error) {
		return s.entries.ListByUser(ctx, memberUserID, &r.From, &r.To)
	}
	members, err := timesheet.BuildTeamReport(ctx, t.Members, r, s.users.FindByEmail, listEntries, now)
	if err != nil {
		return nil, fmt.Errorf("チームレポートの集計に失敗しました: %w", err)
	}

	return &Report{Team: t, Range: r, Members: members}, nil
}

// ListPeople はユーザーが管理する人物名簿を返す。
func (s *Service) ListPeople(ctx context.Context, userID string) ([]*model.Person, error) {
	people, err := s.people.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("人物一覧の取得に失敗しました: %w", err)
	}
	return people, nil
}

// CreatePerson は人物を名簿に登録する。
func (s *Service) CreatePerson(ctx context.Context, userID string, in PersonInput) (*model.Person, error) {
	name, err := s.cleanName(in.Name)
	if err != nil {
		return nil, err
	}

	p := &model.Person{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		Name:       name,
		Email:      strings.TrimSpace(in.Email),
		Role:       s.sanitizer.Text(in.Role),
		Department: s.sanitizer.Text(in.Department),
		CreatedAt:  s.now(),
	}
	if err := s.people.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("人物の登録に失敗しました: %w", err)
	}
	return p, nil
}

// DeletePerson は人物を名簿から削除する。
func (s *Service) DeletePerson(ctx context.Context, userID, personID string) error {
	if _, err := uuid.Parse(personID); err != nil {
		return model.NewPersonNotFoundError(personID)
	}
	p, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	if p == nil || p.OwnerID != userID {
		return model.NewPersonNotFoundError(personID)
	}
	if err := s.people.Delete(ctx, personID); err != nil {
		return fmt.Errorf("人物の削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) findTeam(ctx context.Context, teamID string) (*model.Team, error) {
	if _, err := uuid.Parse(teamID); err != nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	t, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return t, nil
}

func (s *Service) findOwnedTeam(ctx context.Context, userID, teamID string) (*model.Team, error) {
	t, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != userID {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return t, nil
}

// findVisibleTeam は公開範囲に従ってユーザーが閲覧できるチームを返す。
//
//	everyone    : ログイン済みの全ユーザー
//	members     : 全メンバー
//	team_leader : ワークフローのリーダーのみ
//	disabled    : 作成者のみ
func (s *Service) findVisibleTeam(ctx context.Context, userID, teamID string) (*model.Team, error) {
	t, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID == userID {
		return t, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !canView(t, user) {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return t, nil
}

func canView(t *model.Team, u *model.User) bool {
	switch t.Visibility {
	case model.VisibilityEveryone:
		return true
	case model.VisibilityMembers:
		return t.HasMember(u.Email)
	case model.VisibilityTeamLeader:
		leader := strings.ToLower(strings.TrimSpace(t.Workflow.Leader))
		return leader != "" &&
			(leader == strings.ToLower(strings.TrimSpace(u.Name)) || leader == model.NormalizeEmail(u.Email))
	default:
		return false
	}
}

func (s *Service) cleanName(raw string) (string, error) {
	name := s.sanitizer.Text(raw)
	if name == "" {
		return "", model.NewValidationError("name は必須です")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("name は%d文字以内で指定してください", MaxNameLength))
	}
	return name, nil
}

// cleanMembers は名前もメールアドレスも無いメンバーを除き、IDが無いものに採番する。
func (s *Service) cleanMembers(members model.Members) model.Members {
	out := make(model.Members, 0, len(members))
	for _, m := range members {
		m.Name = s.sanitizer.Text(m.Name)
		m.Username = s.sanitizer.Text(m.Username)
		m.Role = s.sanitizer.Text(m.Role)
		m.SubTask = s.sanitizer.Text(m.SubTask)
		m.Email = strings.TrimSpace(m.Email)
		if m.Name == "" && m.Email == "" {
			continue
		}
		if strings.TrimSpace(m.ID) == "" {
			m.ID = uuid.NewString()
		}
		out = append(out, m)
	}
	return out
}

func parseColor(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DefaultTeamColor, nil
	}
	if !colorPattern.MatchString(raw) {
		return "", model.NewValidationError(fmt.Sprintf("color の形式が不正です: %s", raw))
	}
	return strings.ToLower(raw), nil
}

func parseVisibility(raw string) (model.Visibility, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.VisibilityEveryone, nil
	}
	v := model.Visibility(raw)
	if !v.Valid() {
		return "", model.NewInvalidVisibilityError(raw)
	}
	return v, nil
}
