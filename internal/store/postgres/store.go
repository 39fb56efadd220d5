// Package postgres はgormとpgxプールを用いたPostgreSQL版のレコードストアを提供する。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/nao1215/restapi/internal/store"
)

// recordRow はrecordsテーブルの1行。
type recordRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Entity     string    `gorm:"not null;index:idx_records_entity,priority:1"`
	Fields     string    `gorm:"type:text;not null;default:'{}'"`
	CreateDate time.Time `gorm:"not null"`
	WriteDate  time.Time `gorm:"not null"`
}

// TableName はgormが使用するテーブル名を返す。
func (recordRow) TableName() string { return "records" }

// userRow はusersテーブルの1行。
type userRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Login        string `gorm:"not null;uniqueIndex"`
	Name         string `gorm:"not null;default:''"`
	PasswordHash string `gorm:"not null"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

// TableName はgormが使用するテーブル名を返す。
func (userRow) TableName() string { return "users" }

// Store はPostgreSQLに保存するレコードストア。
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	pool  *pgxpool.Pool
	now   func() time.Time
}

// Open はpgxプールを作成し、gorm経由でスキーマを自動マイグレーションする。
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("コネクションプールの作成に失敗: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("gormの初期化に失敗: %w", err)
	}

	s := &Store{db: db, sqlDB: sqlDB, pool: pool, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate はrecords / usersテーブルを自動マイグレーションする。
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&recordRow{}, &userRow{}); err != nil {
		return fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return nil
}

// Close はgormとプールの接続を閉じる。
func (s *Store) Close() error {
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}

// SearchAll は指定エンティティの全レコードをID順に返す。
func (s *Store) SearchAll(ctx context.Context, entity string) ([]store.Record, error) {
	var rows []recordRow
	if err := s.db.WithContext(ctx).Where("entity = ?", entity).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("レコード一覧の取得に失敗: %w", err)
	}

	records := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		r, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// GetByID は指定IDのレコードを返す。存在しない場合はstore.ErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, entity string, id int64) (store.Record, error) {
	var row recordRow
	err := s.db.WithContext(ctx).Where("entity = ? AND id = ?", entity, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("レコードの取得に失敗: %w", err)
	}
	return toRecord(row)
}

// Create は新しいレコードを挿入し、保存後のレコードを返す。
func (s *Store) Create(ctx context.Context, entity string, fields map[string]any) (store.Record, error) {
	text, err := store.EncodeFields(store.Sanitize(fields))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := recordRow{Entity: entity, Fields: text, CreateDate: now, WriteDate: now}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("レコードの作成に失敗: %w", err)
	}
	return toRecord(row)
}

// Update は行ロックを取得した上で既存レコードのフィールドを上書きする。
func (s *Store) Update(ctx context.Context, entity string, id int64, fields map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row recordRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("entity = ? AND id = ?", entity, id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("レコードの取得に失敗: %w", err)
		}

		existing, err := store.DecodeFields(row.Fields)
		if err != nil {
			return err
		}
		text, err := store.EncodeFields(store.Merge(existing, fields))
		if err != nil {
			return err
		}

		if err := tx.Model(&row).Updates(map[string]any{
			"fields":     text,
			"write_date": s.now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("レコードの更新に失敗: %w", err)
		}
		return nil
	})
}

// Delete は指定IDのレコードを削除する。存在しない場合はstore.ErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, entity string, id int64) error {
	res := s.db.WithContext(ctx).Where("entity = ? AND id = ?", entity, id).Delete(&recordRow{})
	if res.Error != nil {
		return fmt.Errorf("レコードの削除に失敗: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindUserByLogin はログイン名でユーザーを検索する。
func (s *Store) FindUserByLogin(ctx context.Context, login string) (store.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("login = ?", login).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return toUser(row), nil
}

// CreateUser はユーザーを作成する。ログイン名が重複する場合はstore.ErrDuplicateを返す。
func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	row := userRow{
		Login:        u.Login,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		Active:       u.Active,
		CreatedAt:    s.now().UTC(),
	}
	// Activeのfalseはゼロ値のためdefault:trueに上書きされないよう明示的に指定する。
	err := s.db.WithContext(ctx).Select("*").Omit("ID").Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.User{}, fmt.Errorf("%w: login=%s", store.ErrDuplicate, u.Login)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return toUser(row), nil
}

func toRecord(row recordRow) (store.Record, error) {
	fields, err := store.DecodeFields(row.Fields)
	if err != nil {
		return nil, err
	}
	return store.NewRecord(row.ID, fields, row.CreateDate, row.WriteDate), nil
}

func toUser(row userRow) store.User {
	return store.User{
		ID:           row.ID,
		Login:        row.Login,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		IsAdmin:      row.IsAdmin,
		Active:       row.Active,
		CreatedAt:    row.CreatedAt,
	}
}
