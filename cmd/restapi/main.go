// 患者レコードREST APIゲートウェイのエントリポイント。
// serve でHTTPサーバーを起動し、migrate でスキーマを適用し、user add でログインユーザーを作成する。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nao1215/restapi/internal/audit"
	"github.com/nao1215/restapi/internal/config"
	"github.com/nao1215/restapi/internal/logging"
	"github.com/nao1215/restapi/internal/restapi"
	"github.com/nao1215/restapi/internal/session"
	"github.com/nao1215/restapi/internal/store"
	"github.com/nao1215/restapi/internal/store/sqlite"
	"github.com/nao1215/restapi/pkg/httpclient"
)

// version はビルド時に -ldflags "-X main.version=..." で上書きされる。
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd はルートコマンドを組み立てる。
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "restapi",
		Short:        "Patient record REST API gateway",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// loadRuntime は設定とロガーを読み込む。
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.With().Str("service", "restapi").Logger(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

// runServer は依存オブジェクトを組み立ててサーバーを起動し、ctxがキャンセルされるまで待つ。
func runServer(ctx context.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.StoreBackend).Msg("ストアの初期化に失敗")
		return err
	}
	defer b.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("ストアに接続しました")

	sessions := session.New(b, session.Config{
		DB:            cfg.DB,
		Secret:        cfg.JWTSecret,
		TTL:           cfg.SessionTTL,
		ServerVersion: version,
	})
	if err := bootstrapAdmin(ctx, cfg, b, sessions, logger); err != nil {
		return err
	}

	recorder, closeAudit, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	server := restapi.NewServer(restapi.Config{
		Addr:            ":" + cfg.Port,
		DB:              cfg.DB,
		Entity:          cfg.Entity,
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		SecureCookie:    cfg.SessionCookieSecure,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, b, sessions, restapi.WithLogger(logger), restapi.WithRecorder(recorder))

	return server.Run(ctx)
}

// newRecorder は設定に応じた監査Sinkを持つRecorderを生成する。
// 返される関数は確立した接続を閉じる。
func newRecorder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*audit.Recorder, func(), error) {
	sinks := []audit.Sink{audit.NewLogSink(logger)}
	closeFn := func() {}

	if cfg.AuditMongoURI != "" {
		mongoSink, err := audit.NewMongoSink(ctx, cfg.AuditMongoURI, cfg.AuditMongoDB, cfg.AuditCollection)
		if err != nil {
			return nil, nil, fmt.Errorf("監査ログ用MongoDBの初期化に失敗: %w", err)
		}
		sinks = append(sinks, mongoSink)
		closeFn = func() {
			if err := mongoSink.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("監査ログ用MongoDBの切断に失敗")
			}
		}
		logger.Info().Str("collection", cfg.AuditCollection).Msg("監査ログをMongoDBに保存します")
	}

	if cfg.AuditWebhookURL != "" {
		opts := []httpclient.Option{httpclient.WithTimeout(cfg.AuditWebhookTimeout)}
		if cfg.AuditWebhookToken != "" {
			opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.AuditWebhookToken))
		}
		sinks = append(sinks, audit.NewWebhookSink(cfg.AuditWebhookURL, opts...))
		logger.Info().Msg("監査イベントをWebhookに送信します")
	}

	return audit.NewRecorder(logger, sinks...), closeFn, nil
}

// bootstrapAdmin はRESTAPI_ADMIN_LOGIN / RESTAPI_ADMIN_PASSWORDが設定されていれば管理者ユーザーを作成する。
// 既に存在する場合は何もしない。
func bootstrapAdmin(ctx context.Context, cfg *config.Config, b backend, sessions *session.Service, logger zerolog.Logger) error {
	if cfg.AdminLogin == "" || cfg.AdminPassword == "" {
		return nil
	}
	_, err := b.FindUserByLogin(ctx, cfg.AdminLogin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("管理者ユーザーの確認に失敗: %w", err)
	}

	hash, err := sessions.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u, err := b.CreateUser(ctx, store.User{
		Login:        cfg.AdminLogin,
		Name:         "Administrator",
		PasswordHash: hash,
		IsAdmin:      true,
		Active:       true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("管理者ユーザーの作成に失敗: %w", err)
	}
	logger.Info().Str("login", cfg.AdminLogin).Int64("uid", u.ID).Msg("管理者ユーザーを作成しました")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the record store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if cfg.StoreBackend == config.BackendPostgres {
				b, err := openBackend(cmd.Context(), cfg, logger)
				if err != nil {
					return err
				}
				defer b.Close()
				fmt.Fprintln(cmd.OutOrStdout(), "postgres schema is up to date")
				return nil
			}

			db, err := openSQLiteDB(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := sqlite.Migrate(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show sqlite migration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendSQLite {
				return fmt.Errorf("migrate status は %s バックエンドのみ対応しています", config.BackendSQLite)
			}
			db, err := openSQLiteDB(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := sqlite.MigrationStatus(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-40s %s\n", "VERSION", "NAME", "STATUS")
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%-8d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login users",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a login user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			login, _ := cmd.Flags().GetString("login")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			isAdmin, _ := cmd.Flags().GetBool("admin")
			if name == "" {
				name = login
			}

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			hash, err := session.New(nil, session.Config{}).HashPassword(password)
			if err != nil {
				return err
			}
			u, err := b.CreateUser(cmd.Context(), store.User{
				Login:        login,
				Name:         name,
				PasswordHash: hash,
				IsAdmin:      isAdmin,
				Active:       true,
			})
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("ログイン名 %q は既に使われています", login)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (uid=%d)\n", u.Login, u.ID)
			return nil
		},
	}
	addCmd.Flags().String("login", "", "Login name (unique)")
	addCmd.Flags().String("password", "", "Password")
	addCmd.Flags().String("name", "", "Display name (defaults to the login)")
	addCmd.Flags().Bool("admin", false, "Grant administrator rights")
	_ = addCmd.MarkFlagRequired("login")
	_ = addCmd.MarkFlagRequired("password")

	cmd.AddCommand(addCmd)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
