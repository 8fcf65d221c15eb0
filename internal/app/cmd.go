package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tpodo/internal/auth"
	"github.com/hitoshi/tpodo/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はクリーンアップワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateAdmin は管理者ユーザーを作成することを示す。
	CommandCreateAdmin Command = "create-admin"
	// CommandImport は旧JSONファイルストアからユーザーを取り込むことを示す。
	CommandImport Command = "import"
	// CommandListProjects は全プロジェクトを一覧表示することを示す。
	CommandListProjects Command = "list-projects"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドの指定がない場合はserveとして起動する。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// NewRootCommand はtpodoのルートコマンドを構築する。
// ログとコマンド出力はwに書き込む。
func NewRootCommand(w io.Writer) *cobra.Command {
	if w == nil {
		w = os.Stdout
	}

	root := &cobra.Command{
		Use:           "tpodo",
		Short:         "tpodo - time tracking and task management server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(w, CommandServe, runServe)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Start the API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(w, CommandServe, runServe)
			},
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "Run the cleanup worker for expired sessions and codes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(w, CommandWorker, runWorker)
			},
		},
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newCreateAdminCommand(w),
		newImportCommand(w),
		&cobra.Command{
			Use:   string(CommandListProjects),
			Short: "Print all projects as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(w, CommandListProjects, func(cfg *config.Config) error {
					return runListProjects(cmd.Context(), cfg, cmd.OutOrStdout())
				})
			},
		},
	)

	return root
}

// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check that the local API server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(port)
		},
	}
	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "API server port")
	return cmd
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	var opts MigrateOptions
	cmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Down < 0 {
				return fmt.Errorf("--down must not be negative, got %d", opts.Down)
			}
			return withConfig(w, CommandMigrate, func(cfg *config.Config) error {
				return runMigrate(cfg, opts)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Down, "down", 0, "Roll back the given number of migrations")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "Print the applied schema version and exit")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

func newCreateAdminCommand(w io.Writer) *cobra.Command {
	var in auth.Credentials
	cmd := &cobra.Command{
		Use:   string(CommandCreateAdmin),
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(w, CommandCreateAdmin, func(cfg *config.Config) error {
				return runCreateAdmin(cmd.Context(), cfg, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email (defaults to ADMIN_EMAIL)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Admin password (defaults to ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Admin display name (defaults to ADMIN_NAME)")
	return cmd
}

func newImportCommand(w io.Writer) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   string(CommandImport),
		Short: "Import users from a legacy JSON file store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(w, CommandImport, func(cfg *config.Config) error {
				return runImport(cmd.Context(), cfg, path)
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "db.json", "Path to the legacy JSON file")
	return cmd
}

// withConfig は初期化を行ってからfnを実行する。
func withConfig(w io.Writer, command Command, fn func(*config.Config) error) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(command)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)
	return fn(cfg)
}
