package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用した作業記録リポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

const entryColumns = `id, user_id, title, project_id, task_id, team_id, start_at, end_at, billable, created_at, updated_at`

func scanEntry(row rowScanner) (model.TimeEntry, error) {
	var e model.TimeEntry
	var projectID, taskID, teamID sql.NullString
	var end sql.NullTime
	if err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &projectID, &taskID, &teamID,
		&e.Start, &end, &e.Billable, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return model.TimeEntry{}, err
	}
	e.ProjectID = stringPtr(projectID)
	e.TaskID = stringPtr(taskID)
	e.TeamID = stringPtr(teamID)
	e.End = timePtr(end)
	return e, nil
}

func (r *PostgresEntryRepo) queryEntries(ctx context.Context, query string, args ...any) ([]model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("作業記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := []model.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("作業記録行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("作業記録一覧の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// ListByUser はユーザーの作業記録を開始時刻順に返す。
// fromとtoが指定された場合は [from, to) と重なる記録に絞り込む。
func (r *PostgresEntryRepo) ListByUser(ctx context.Context, userID string, from, to *time.Time) ([]model.TimeEntry, error) {
	return r.queryEntries(ctx,
		`SELECT `+entryColumns+`
		 FROM time_entries
		 WHERE user_id = $1
		   AND ($2::timestamptz IS NULL OR COALESCE(end_at, 'infinity'::timestamptz) > $2)
		   AND ($3::timestamptz IS NULL OR start_at < $3)
		 ORDER BY start_at ASC, id ASC`,
		userID, nullableTime(from), nullableTime(to),
	)
}

// ListByUserAndTask はユーザーの指定タスクに紐づく作業記録を返す。
func (r *PostgresEntryRepo) ListByUserAndTask(ctx context.Context, userID, taskID string) ([]model.TimeEntry, error) {
	return r.queryEntries(ctx,
		`SELECT `+entryColumns+`
		 FROM time_entries
		 WHERE user_id = $1 AND task_id = $2
		 ORDER BY start_at ASC, id ASC`,
		userID, taskID,
	)
}

// FindByID は指定IDの作業記録を取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("作業記録の取得に失敗しました: %w", err)
	}
	return &e, nil
}

// Create は作業記録を作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, e *model.TimeEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_entries (id, user_id, title, project_id, task_id, team_id, start_at, end_at, billable, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.UserID, e.Title,
		nullableString(e.ProjectID), nullableString(e.TaskID), nullableString(e.TeamID),
		e.Start, nullableTime(e.End), e.Billable, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("作業記録の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は作業記録を上書き更新する。
func (r *PostgresEntryRepo) Update(ctx context.Context, e *model.TimeEntry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE time_entries
		 SET title = $2, project_id = $3, task_id = $4, team_id = $5,
		     start_at = $6, end_at = $7, billable = $8, updated_at = $9
		 WHERE id = $1`,
		e.ID, e.Title,
		nullableString(e.ProjectID), nullableString(e.TaskID), nullableString(e.TeamID),
		e.Start, nullableTime(e.End), e.Billable, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("作業記録の更新に失敗しました: %w", err)
	}
	return expectOneRow(result, "time entry", e.ID)
}

// Delete は指定IDの作業記録を削除する。
func (r *PostgresEntryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("作業記録の削除に失敗しました: %w", err)
	}
	return expectOneRow(result, "time entry", id)
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
