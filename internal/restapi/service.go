package restapi

import (
	"context"

	"github.com/nao1215/restapi/internal/session"
	"github.com/nao1215/restapi/internal/store"
)

// RecordStore はゲートウェイが利用するレコードストア。
// 存在しないIDに対してはstore.ErrNotFoundを返す。
type RecordStore interface {
	SearchAll(ctx context.Context, entity string) ([]store.Record, error)
	GetByID(ctx context.Context, entity string, id int64) (store.Record, error)
	Create(ctx context.Context, entity string, fields map[string]any) (store.Record, error)
	Update(ctx context.Context, entity string, id int64, fields map[string]any) error
	Delete(ctx context.Context, entity string, id int64) error
}

// SessionService はゲートウェイが利用する認証サービス。
// 認証情報が受け入れられない場合はsession.ErrInvalidCredentialsを返す。
type SessionService interface {
	Authenticate(ctx context.Context, db, login, password string) (*session.Session, error)
	Info(sess *session.Session) session.Info
}
