package restapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/restapi/internal/audit"
	"github.com/nao1215/restapi/pkg/middleware"
)

// Config はゲートウェイの設定。
type Config struct {
	// Addr はリッスンアドレス（例: ":8069"）。
	Addr string
	// DB はセッションを受け付けるデータベース識別子。
	DB string
	// Entity は扱うエンティティ名（例: "hospital.patient"）。
	Entity string
	// JWTSecret はセッショントークンの検証鍵。
	JWTSecret string
	// CORSOrigins はCORSで許可するオリジン。空の場合CORSは無効。
	CORSOrigins []string
	// SecureCookie がtrueの場合、session_id CookieにSecure属性を付与する。
	SecureCookie bool
	// ShutdownTimeout はグレースフルシャットダウンの待機上限。
	ShutdownTimeout time.Duration
}

// Server はREST APIゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はゲートウェイの設定。
	cfg Config
	// records はレコードストア。
	records RecordStore
	// sessions は認証サービス。
	sessions SessionService
	// logger はアプリケーションロガー。
	logger zerolog.Logger
	// recorder は監査イベントの記録先。
	recorder *audit.Recorder
}

// Option はServerの設定を変更する関数。
type Option func(*Server)

// WithLogger はロガーを設定する。
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRecorder は監査イベントの記録先を設定する。
func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(cfg Config, records RecordStore, sessions SessionService, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		records:  records,
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = audit.NewRecorder(s.logger)
	}

	router := gin.New()
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(s.logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	s.router = router
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はcfg.Addrでリッスンし、ctxがキャンセルされるまでリクエストを処理する。
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("リッスンに失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnでリクエストを処理する。
// ctxがキャンセルされると新規接続の受付を止め、処理中のリクエストの完了を
// ShutdownTimeoutまで待ってから戻る。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Str("entity", s.cfg.Entity).Msg("サーバーを起動しました")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーが異常終了: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	s.logger.Info().Msg("サーバーを停止しました")
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/restapi")
	{
		// ヘルスチェック（認証不要）
		api.GET("", s.handleHealth())
		// ログイン（認証不要）
		api.POST("/auth", s.handleAuth())
	}

	// 認証必須のエンドポイント
	user := api.Group("")
	user.Use(middleware.SessionAuth(s.cfg.JWTSecret, s.cfg.DB))
	{
		user.GET("/get-all", s.handleGetAll())
		user.POST("/create", s.handleCreate())

		// ID無しのパスもNoRouteではなく各ハンドラーで400を返す
		for _, path := range []string{"/get-data", "/get-data/", "/get-data/:id"} {
			user.GET(path, s.handleGetData())
		}
		for _, path := range []string{"/update", "/update/", "/update/:id"} {
			user.PUT(path, s.handleUpdate())
		}
		for _, path := range []string{"/delete", "/delete/", "/delete/:id"} {
			user.DELETE(path, s.handleDelete())
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
}
