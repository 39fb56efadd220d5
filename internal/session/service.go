package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/restapi/internal/store"
	"github.com/nao1215/restapi/pkg/middleware"
)

// ErrInvalidCredentials は認証情報が受け入れられなかったことを表す。
// データベース識別子の不一致、存在しない・無効なユーザー、パスワード不一致のいずれか。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmptyPassword は空のパスワードをハッシュ化しようとしたことを表す。
var ErrEmptyPassword = errors.New("password must not be empty")

// UserFinder はログイン名でユーザーを検索する。
type UserFinder interface {
	FindUserByLogin(ctx context.Context, login string) (store.User, error)
}

// Config はセッションサービスの設定。
type Config struct {
	// DB は認証を受け付けるデータベース識別子。
	DB string
	// Secret はトークン署名用の秘密鍵。
	Secret string
	// TTL はセッションの有効期間。
	TTL time.Duration
	// ServerVersion はセッション情報に含めるサーバーバージョン。
	ServerVersion string
	// BcryptCost はHashPasswordのコスト。0の場合はbcrypt.DefaultCost。
	BcryptCost int
}

// Session は認証済みセッション。
type Session struct {
	// Token は署名済みのセッショントークン。
	Token string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
	// DB はセッションのデータベース識別子。
	DB string
	// User は認証されたユーザー。
	User store.User
}

// Info はクライアントに返すセッション情報。
type Info struct {
	UID           int64     `json:"uid"`
	Name          string    `json:"name"`
	Username      string    `json:"username"`
	DB            string    `json:"db"`
	IsAdmin       bool      `json:"is_admin"`
	SessionID     string    `json:"session_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	ServerVersion string    `json:"server_version"`
}

// Service は認証とセッション発行を行う。
type Service struct {
	users UserFinder
	cfg   Config
}

// New は新しいServiceを生成する。
func New(users UserFinder, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, cfg: cfg}
}

// Authenticate は認証情報を検証し、成功した場合に新しいセッションを返す。
// 認証情報が受け入れられない場合はErrInvalidCredentialsをラップしたエラーを返す。
// ストアの障害はそのまま返す。
func (s *Service) Authenticate(ctx context.Context, db, login, password string) (*Session, error) {
	if db != s.cfg.DB {
		return nil, fmt.Errorf("%w: unknown database %q", ErrInvalidCredentials, db)
	}

	user, err := s.users.FindUserByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown login %q", ErrInvalidCredentials, login)
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: user %q is inactive", ErrInvalidCredentials, login)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: password mismatch for %q", ErrInvalidCredentials, login)
	}

	token, expiresAt, err := middleware.GenerateJWT(s.cfg.Secret, user.ID, user.Login, db, s.cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("セッショントークンの生成に失敗: %w", err)
	}
	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		DB:        db,
		User:      user,
	}, nil
}

// Info はセッションからクライアント向けのセッション情報を組み立てる。
func (s *Service) Info(sess *Session) Info {
	return Info{
		UID:           sess.User.ID,
		Name:          sess.User.Name,
		Username:      sess.User.Login,
		DB:            sess.DB,
		IsAdmin:       sess.User.IsAdmin,
		SessionID:     sess.Token,
		ExpiresAt:     sess.ExpiresAt.UTC(),
		ServerVersion: s.cfg.ServerVersion,
	}
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func (s *Service) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(hashed), nil
}
