package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// 環境変数を変更するため、このファイルのテストは並列実行しない。

// unsetenv はテスト終了時に元の値へ戻す前提で環境変数を削除する。
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("環境変数 %s の削除に失敗: %v", key, err)
		}
	}
}

// TestLoad は環境変数からの読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Run("既定値が設定されること", func(t *testing.T) {
		unsetenv(t, "PORT", "RESTAPI_DB", "RESTAPI_ENTITY", "STORE_BACKEND", "JWT_SECRET",
			"SESSION_TTL", "CORS_ORIGINS", "LOG_FORMAT", "SHUTDOWN_TIMEOUT", "AUDIT_WEBHOOK_TIMEOUT")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "8069" {
			t.Errorf("Port = %q, want 8069", cfg.Port)
		}
		if cfg.DB != "hospital" || cfg.Entity != "hospital.patient" {
			t.Errorf("DB = %q, Entity = %q", cfg.DB, cfg.Entity)
		}
		if cfg.StoreBackend != BackendSQLite {
			t.Errorf("StoreBackend = %q, want sqlite", cfg.StoreBackend)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
		}
		if cfg.ShutdownTimeout != 10*time.Second {
			t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
		}
		if cfg.AuditWebhookTimeout != 10*time.Second {
			t.Errorf("AuditWebhookTimeout = %v, want 10s", cfg.AuditWebhookTimeout)
		}
		if len(cfg.CORSOrigins) != 0 {
			t.Errorf("CORSOrigins = %v, want empty", cfg.CORSOrigins)
		}
	})

	t.Run("環境変数で値を上書きできること", func(t *testing.T) {
		unsetenv(t, "RESTAPI_DB", "RESTAPI_ENTITY", "JWT_SECRET")
		t.Setenv("PORT", "9000")
		t.Setenv("STORE_BACKEND", "postgres")
		t.Setenv("SESSION_TTL", "90m")
		t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://hospital.test ,")
		t.Setenv("LOG_FORMAT", "console")
		t.Setenv("SHUTDOWN_TIMEOUT", "3s")
		t.Setenv("AUDIT_WEBHOOK_TIMEOUT", "2500ms")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "9000" || cfg.StoreBackend != BackendPostgres {
			t.Errorf("Port = %q, StoreBackend = %q", cfg.Port, cfg.StoreBackend)
		}
		if cfg.SessionTTL != 90*time.Minute {
			t.Errorf("SessionTTL = %v, want 90m", cfg.SessionTTL)
		}
		if cfg.AuditWebhookTimeout != 2500*time.Millisecond {
			t.Errorf("AuditWebhookTimeout = %v, want 2.5s", cfg.AuditWebhookTimeout)
		}
		want := []string{"http://localhost:3000", "https://hospital.test"}
		if diff := cmp.Diff(want, cfg.CORSOrigins); diff != "" {
			t.Errorf("CORSOrigins mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("不正なバックエンドはエラーになること", func(t *testing.T) {
		unsetenv(t, "PORT", "RESTAPI_DB", "RESTAPI_ENTITY", "JWT_SECRET",
			"SESSION_TTL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT", "AUDIT_WEBHOOK_TIMEOUT")
		t.Setenv("STORE_BACKEND", "mysql")

		_, err := Load()
		if err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
		if !strings.Contains(err.Error(), "STORE_BACKEND") {
			t.Errorf("err = %v, STORE_BACKEND を含むべき", err)
		}
	})

	t.Run("不正な期間はエラーになること", func(t *testing.T) {
		unsetenv(t, "STORE_BACKEND")
		t.Setenv("SESSION_TTL", "forever")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestValidate は設定値の検証を検証する。
func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:                "8069",
			DB:                  "hospital",
			Entity:              "hospital.patient",
			StoreBackend:        BackendSQLite,
			JWTSecret:           "secret",
			SessionTTL:          time.Hour,
			LogFormat:           "json",
			ShutdownTimeout:     time.Second,
			AuditWebhookTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "正しい設定はエラーにならないこと", mutate: func(*Config) {}},
		{name: "TTLが0の場合はエラーになること", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: "SESSION_TTL"},
		{name: "TTLが負の場合はエラーになること", mutate: func(c *Config) { c.SessionTTL = -time.Minute }, wantErr: "SESSION_TTL"},
		{name: "秘密鍵が空の場合はエラーになること", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "エンティティが空の場合はエラーになること", mutate: func(c *Config) { c.Entity = "" }, wantErr: "RESTAPI_ENTITY"},
		{name: "未知のログ形式はエラーになること", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "Webhookのタイムアウトが0の場合はエラーになること", mutate: func(c *Config) { c.AuditWebhookTimeout = 0 }, wantErr: "AUDIT_WEBHOOK_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate()でエラーが発生: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q を含むエラー", err, tt.wantErr)
			}
		})
	}
}
