// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

var (
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("duplicate key")
	// ErrNotFound は更新・削除の対象行が存在しないことを表す。
	ErrNotFound = errors.New("row not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Count は登録済みユーザー数を返す。
	Count(ctx context.Context) (int, error)

	// List は全ユーザーを作成日時順に返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateProfile は名前・電話番号・年齢・性別を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、time_entries、projects、tasks、teams、peopleはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EntryRepository は作業記録の永続化インターフェース。
type EntryRepository interface {
	// ListByUser はユーザーの作業記録を開始時刻順に返す。
	// fromとtoが指定された場合は [from, to) と重なる記録に絞り込む。
	// 計測中の記録は開始時刻がto以前であれば重なるものとみなす。
	ListByUser(ctx context.Context, userID string, from, to *time.Time) ([]model.TimeEntry, error)

	// ListByUserAndTask はユーザーの指定タスクに紐づく作業記録を返す。
	ListByUserAndTask(ctx context.Context, userID, taskID string) ([]model.TimeEntry, error)

	// FindByID は指定IDの作業記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TimeEntry, error)

	// Create は作業記録を作成する。
	Create(ctx context.Context, entry *model.TimeEntry) error

	// Update は作業記録を上書き更新する。
	Update(ctx context.Context, entry *model.TimeEntry) error

	// Delete は指定IDの作業記録を削除する。
	Delete(ctx context.Context, id string) error
}

// ProjectRepository はプロジェクトの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)
	// ListByOwner はユーザーのプロジェクトを名前順に返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Project, error)
	// ListAll は全ユーザーのプロジェクトを返す。
	ListAll(ctx context.Context) ([]*model.Project, error)
	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error
}

// TaskRepository はタスクの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)
	// ListByOwner はユーザーが作成したタスクを返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)
	// ListByProject はプロジェクトに属するタスクを返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.Task, error)
	// ListAssignedTo は担当者の名前・メールアドレス・ユーザー名のいずれかがkeysに
	// 一致するタスクを返す。比較は小文字で行う。
	ListAssignedTo(ctx context.Context, keys []string) ([]*model.Task, error)
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error
	// Update はタスクを上書き更新する。
	Update(ctx context.Context, task *model.Task) error
	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error
}

// TeamRepository はチームの永続化インターフェース。
type TeamRepository interface {
	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)
	// ListByOwner はユーザーのチームを返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Team, error)
	// Create はチームを作成する。
	Create(ctx context.Context, team *model.Team) error
	// Update はチームを上書き更新する。
	Update(ctx context.Context, team *model.Team) error
	// Delete は指定IDのチームを削除する。
	Delete(ctx context.Context, id string) error
}

// PersonRepository は人物ディレクトリの永続化インターフェース。
type PersonRepository interface {
	// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Person, error)
	// ListByOwner はユーザーが管理する人物を名前順に返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Person, error)
	// Create は人物を作成する。
	Create(ctx context.Context, person *model.Person) error
	// Delete は指定IDの人物を削除する。
	Delete(ctx context.Context, id string) error
}
