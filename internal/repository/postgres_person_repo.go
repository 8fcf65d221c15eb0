package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tpodo/internal/model"
)

// PostgresPersonRepo はPostgreSQLを使用した人物ディレクトリのリポジトリ。
type PostgresPersonRepo struct {
	db *sql.DB
}

// NewPostgresPersonRepo はPostgresPersonRepoを生成する。
func NewPostgresPersonRepo(db *sql.DB) *PostgresPersonRepo {
	return &PostgresPersonRepo{db: db}
}

// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
func (r *PostgresPersonRepo) FindByID(ctx context.Context, id string) (*model.Person, error) {
	p := &model.Person{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, email, role, department, created_at FROM people WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Email, &p.Role, &p.Department, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	return p, nil
}

// ListByOwner はユーザーが管理する人物を名前順に返す。
func (r *PostgresPersonRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, email, role, department, created_at
		 FROM people WHERE owner_id = $1 ORDER BY name ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("人物一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		p := &model.Person{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Email, &p.Role, &p.Department, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("人物行の読み取りに失敗しました: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("人物一覧の走査に失敗しました: %w", err)
	}
	return people, nil
}

// Create は人物を作成する。
func (r *PostgresPersonRepo) Create(ctx context.Context, p *model.Person) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO people (id, owner_id, name, email, role, department, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Name, p.Email, p.Role, p.Department, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("人物の作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの人物を削除する。
func (r *PostgresPersonRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM people WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("人物の削除に失敗しました: %w", err)
	}
	return expectOneRow(result, "person", id)
}

// compile-time interface check
var _ PersonRepository = (*PostgresPersonRepo)(nil)
