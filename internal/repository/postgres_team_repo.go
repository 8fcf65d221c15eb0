package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/tpodo/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
// メンバーとワークフローはJSONBカラムに保存する。
type PostgresTeamRepo struct {
	db *sql.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sql.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

const teamColumns = `id, owner_id, name, description, color, visibility, members, workflow, created_at, updated_at`

func scanTeam(row rowScanner) (*model.Team, error) {
	t := &model.Team{}
	var visibility string
	var members, workflow []byte
	if err := row.Scan(
		&t.ID, &t.OwnerID, &t.Name, &t.Description, &t.Color, &visibility,
		&members, &workflow, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Visibility = model.Visibility(visibility)

	// 旧形式（文字列のみ）のメンバーもここで正規化される
	if err := json.Unmarshal(members, &t.Members); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	if err := json.Unmarshal(workflow, &t.Workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	return t, nil
}

func encodeTeamJSON(t *model.Team) (members, workflow string, err error) {
	list := t.Members
	if list == nil {
		list = model.Members{}
	}
	mb, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode members: %w", err)
	}
	wb, err := json.Marshal(t.Workflow)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode workflow: %w", err)
	}
	return string(mb), string(wb), nil
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	t, err := scanTeam(r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	return t, nil
}

// ListByOwner はユーザーのチームを作成日時順に返す。
func (r *PostgresTeamRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var teams []*model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("チーム行の読み取りに失敗しました: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チーム一覧の走査に失敗しました: %w", err)
	}
	return teams, nil
}

// Create はチームを作成する。
func (r *PostgresTeamRepo) Create(ctx context.Context, t *model.Team) error {
	members, workflow, err := encodeTeamJSON(t)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO teams (id, owner_id, name, description, color, visibility, members, workflow, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OwnerID, t.Name, t.Description, t.Color, string(t.Visibility),
		members, workflow, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チームの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はチームを上書き更新する。
func (r *PostgresTeamRepo) Update(ctx context.Context, t *model.Team) error {
	members, workflow, err := encodeTeamJSON(t)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams
		 SET name = $2, description = $3, color = $4, visibility = $5,
		     members = $6, workflow = $7, updated_at = $8
		 WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Color, string(t.Visibility),
		members, workflow, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チームの更新に失敗しました: %w", err)
	}
	return expectOneRow(result, "team", t.ID)
}

// Delete は指定IDのチームを削除する。
func (r *PostgresTeamRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM teams WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("チームの削除に失敗しました: %w", err)
	}
	return expectOneRow(result, "team", id)
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
