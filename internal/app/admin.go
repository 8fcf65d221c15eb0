package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hitoshi/tpodo/internal/auth"
	"github.com/hitoshi/tpodo/internal/config"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/user"
)

// runCreateAdmin は管理者ユーザーを作成する。
// フラグで指定されなかった項目はADMIN_EMAIL等の設定値を使う。
func runCreateAdmin(ctx context.Context, cfg *config.Config, in auth.Credentials) error {
	if in.Email == "" {
		in.Email = cfg.AdminEmail
	}
	if in.Password == "" {
		in.Password = cfg.AdminPassword
	}
	if in.Name == "" {
		in.Name = cfg.AdminName
	}
	if in.Email == "" || in.Password == "" {
		return errors.New("email and password are required")
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		nil, nil,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge, BcryptCost: cfg.BcryptCost},
	)

	u, err := authService.CreateAdmin(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin user created",
		slog.String("user_id", u.ID),
		slog.String("email", u.Email),
	)
	return nil
}

// runImport は旧JSONファイルストアからユーザーを取り込む。
func runImport(ctx context.Context, cfg *config.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := user.ImportLegacyUsers(ctx, f, repository.NewPostgresUserRepo(db), slog.Default())
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("import finished with %d failed users", result.Failed)
	}
	return nil
}

type projectListing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// runListProjects は全プロジェクトを作成日時順にJSONで出力する。
func runListProjects(ctx context.Context, cfg *config.Config, w io.Writer) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	projects, err := repository.NewPostgresProjectRepo(db).ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	return writeProjects(w, projects)
}

func writeProjects(w io.Writer, projects []*model.Project) error {
	out := make([]projectListing, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectListing{
			ID:          p.ID,
			OwnerID:     p.OwnerID,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
