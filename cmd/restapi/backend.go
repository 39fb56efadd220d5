package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/nao1215/restapi/internal/config"
	"github.com/nao1215/restapi/internal/restapi"
	"github.com/nao1215/restapi/internal/store"
	"github.com/nao1215/restapi/internal/store/postgres"
	"github.com/nao1215/restapi/internal/store/sqlite"
)

// backend はレコードとユーザーを保存するストア。
type backend interface {
	restapi.RecordStore
	FindUserByLogin(ctx context.Context, login string) (store.User, error)
	CreateUser(ctx context.Context, u store.User) (store.User, error)
	Close() error
}

var (
	_ backend = (*sqlite.Store)(nil)
	_ backend = (*postgres.Store)(nil)
)

// openBackend は設定されたバックエンドのストアを開き、スキーマを適用する。
func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("未知のストアバックエンド: %q", cfg.StoreBackend)
	}
}

// openSQLiteDB はマイグレーション用にSQLiteファイルを開く。
func openSQLiteDB(path string) (*sql.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqlite.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	return db, nil
}

// ensureDir はデータベースファイルの親ディレクトリを作成する。
func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("データディレクトリの作成に失敗: %w", err)
	}
	return nil
}
