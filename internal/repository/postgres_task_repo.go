package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/tpodo/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 担当者とTODOはJSONBカラムに保存する。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, owner_id, project_id, team_id, title, status, assigned_to, todos, created_at, updated_at`

func scanTask(row rowScanner) (*model.Task, error) {
	t := &model.Task{}
	var projectID, teamID sql.NullString
	var status string
	var assignedTo, todos []byte
	if err := row.Scan(
		&t.ID, &t.OwnerID, &projectID, &teamID, &t.Title, &status,
		&assignedTo, &todos, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.ProjectID = stringPtr(projectID)
	t.TeamID = stringPtr(teamID)
	t.Status = model.TaskStatus(status)

	if err := json.Unmarshal(assignedTo, &t.AssignedTo); err != nil {
		return nil, fmt.Errorf("failed to decode assigned_to: %w", err)
	}
	if err := json.Unmarshal(todos, &t.Todos); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	if t.Todos == nil {
		t.Todos = []model.Todo{}
	}
	return t, nil
}

func encodeTaskJSON(t *model.Task) (assignedTo, todos []byte, err error) {
	assignedTo, err = json.Marshal(t.AssignedTo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode assigned_to: %w", err)
	}
	items := t.Todos
	if items == nil {
		items = []model.Todo{}
	}
	todos, err = json.Marshal(items)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode todos: %w", err)
	}
	return assignedTo, todos, nil
}

func (r *PostgresTaskRepo) queryTasks(ctx context.Context, query string, args ...any) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}
	return tasks, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return t, nil
}

// ListByOwner はユーザーが作成したタスクを作成日時順に返す。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
}

// ListByProject はプロジェクトに属するタスクを作成日時順に返す。
func (r *PostgresTaskRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID,
	)
}

// ListAssignedTo は担当者がkeysのいずれかに一致するタスクを返す。
// 文字列の担当者は名前、オブジェクトの担当者は名前・メールアドレス・ユーザー名で照合する。
func (r *PostgresTaskRepo) ListAssignedTo(ctx context.Context, keys []string) ([]*model.Task, error) {
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	if len(normalized) == 0 {
		return []*model.Task{}, nil
	}
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE (jsonb_typeof(assigned_to) = 'string'
		        AND lower(btrim(assigned_to #>> '{}')) = ANY($1))
		    OR (jsonb_typeof(assigned_to) = 'object'
		        AND (lower(btrim(assigned_to ->> 'name')) = ANY($1)
		             OR lower(btrim(assigned_to ->> 'email')) = ANY($1)
		             OR lower(btrim(assigned_to ->> 'username')) = ANY($1)))
		 ORDER BY created_at ASC`,
		pq.Array(normalized),
	)
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, t *model.Task) error {
	assignedTo, todos, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, project_id, team_id, title, status, assigned_to, todos, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OwnerID, nullableString(t.ProjectID), nullableString(t.TeamID),
		t.Title, string(t.Status), string(assignedTo), string(todos), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタスクを上書き更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, t *model.Task) error {
	assignedTo, todos, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET project_id = $2, team_id = $3, title = $4, status = $5,
		     assigned_to = $6, todos = $7, updated_at = $8
		 WHERE id = $1`,
		t.ID, nullableString(t.ProjectID), nullableString(t.TeamID),
		t.Title, string(t.Status), string(assignedTo), string(todos), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return expectOneRow(result, "task", t.ID)
}

// Delete は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return expectOneRow(result, "task", id)
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
