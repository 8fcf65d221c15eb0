package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tpodo/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, owner_id, name, description, created_at`

func scanProject(row rowScanner) (*model.Project, error) {
	p := &model.Project{}
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresProjectRepo) queryProjects(ctx context.Context, query string, args ...any) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("プロジェクト行の読み取りに失敗しました: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の走査に失敗しました: %w", err)
	}
	return projects, nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	return p, nil
}

// ListByOwner はユーザーのプロジェクトを名前順に返す。
func (r *PostgresProjectRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Project, error) {
	return r.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY name ASC, created_at ASC`,
		ownerID,
	)
}

// ListAll は全ユーザーのプロジェクトを返す。
func (r *PostgresProjectRepo) ListAll(ctx context.Context) ([]*model.Project, error) {
	return r.queryProjects(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC`,
	)
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, name, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
