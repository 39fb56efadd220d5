// Package sqlite はmodernc.org/sqliteを用いたレコードストアとユーザーストアを提供する。
//
// スキーマはembedされたmigrationsディレクトリから pkg/migration で適用する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nao1215/restapi/internal/store"
	"github.com/nao1215/restapi/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsDir はmigrationsFS内のマイグレーションディレクトリ。
const migrationsDir = "migrations"

// Store はSQLiteに保存するレコードストア。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// DSN はファイルパスからWALとビジータイムアウトを有効にした接続文字列を組み立てる。
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

// Open はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if _, err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db), nil
}

// New は既存の接続からStoreを生成する。スキーマは適用済みである必要がある。
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate は埋め込みマイグレーションを適用し、適用件数を返す。
func Migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) (int, error) {
	n, err := migration.Run(ctx, db, migrationsFS, migrationsDir, logger)
	if err != nil {
		return n, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return n, nil
}

// MigrationStatus は埋め込みマイグレーションの適用状態を返す。
func MigrationStatus(ctx context.Context, db *sql.DB) ([]migration.Status, error) {
	return migration.List(ctx, db, migrationsFS, migrationsDir)
}

// DB は内部のデータベース接続を返す。
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// SearchAll は指定エンティティの全レコードをID順に返す。
func (s *Store) SearchAll(ctx context.Context, entity string) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields, create_date, write_date FROM records WHERE entity = ? ORDER BY id`, entity)
	if err != nil {
		return nil, fmt.Errorf("レコード一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []store.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レコード一覧の読み取りに失敗: %w", err)
	}
	return records, nil
}

// GetByID は指定IDのレコードを返す。存在しない場合はstore.ErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, entity string, id int64) (store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields, create_date, write_date FROM records WHERE entity = ? AND id = ?`, entity, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create は新しいレコードを挿入し、保存後のレコードを返す。
func (s *Store) Create(ctx context.Context, entity string, fields map[string]any) (store.Record, error) {
	text, err := store.EncodeFields(store.Sanitize(fields))
	if err != nil {
		return nil, err
	}

	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (entity, fields, create_date, write_date) VALUES (?, ?, ?, ?)`,
		entity, text, now, now)
	if err != nil {
		return nil, fmt.Errorf("レコードの作成に失敗: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("作成したレコードIDの取得に失敗: %w", err)
	}
	return s.GetByID(ctx, entity, id)
}

// Update は既存レコードのフィールドを上書きする。
// 存在しない場合はstore.ErrNotFoundを返す。
func (s *Store) Update(ctx context.Context, entity string, id int64, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM records WHERE entity = ? AND id = ?`, entity, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("レコードの取得に失敗: %w", err)
	}

	existing, err := store.DecodeFields(current)
	if err != nil {
		return err
	}
	text, err := store.EncodeFields(store.Merge(existing, fields))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET fields = ?, write_date = ? WHERE entity = ? AND id = ?`,
		text, formatTime(s.now()), entity, id); err != nil {
		return fmt.Errorf("レコードの更新に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// Delete は指定IDのレコードを削除する。存在しない場合はstore.ErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, entity string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity = ? AND id = ?`, entity, id)
	if err != nil {
		return fmt.Errorf("レコードの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindUserByLogin はログイン名でユーザーを検索する。
func (s *Store) FindUserByLogin(ctx context.Context, login string) (store.User, error) {
	var (
		u         store.User
		isAdmin   int
		active    int
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, login, name, password_hash, is_admin, active, created_at FROM users WHERE login = ?`, login,
	).Scan(&u.ID, &u.Login, &u.Name, &u.PasswordHash, &isAdmin, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	u.IsAdmin = isAdmin != 0
	u.Active = active != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return store.User{}, err
	}
	return u, nil
}

// CreateUser はユーザーを作成する。ログイン名が重複する場合はstore.ErrDuplicateを返す。
func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	u.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (login, name, password_hash, is_admin, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Login, u.Name, u.PasswordHash, boolToInt(u.IsAdmin), boolToInt(u.Active), formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.User{}, fmt.Errorf("%w: login=%s", store.ErrDuplicate, u.Login)
		}
		return store.User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}

	if u.ID, err = res.LastInsertId(); err != nil {
		return store.User{}, fmt.Errorf("作成したユーザーIDの取得に失敗: %w", err)
	}
	return u, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord は1行をstore.Recordに変換する。
func scanRecord(row rowScanner) (store.Record, error) {
	var (
		id                    int64
		fields                string
		createDate, writeDate string
	)
	if err := row.Scan(&id, &fields, &createDate, &writeDate); err != nil {
		return nil, err
	}

	decoded, err := store.DecodeFields(fields)
	if err != nil {
		return nil, err
	}
	created, err := parseTime(createDate)
	if err != nil {
		return nil, err
	}
	written, err := parseTime(writeDate)
	if err != nil {
		return nil, err
	}
	return store.NewRecord(id, decoded, created, written), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時の解析に失敗: %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
