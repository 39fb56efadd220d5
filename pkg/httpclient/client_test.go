package httpclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("既定のタイムアウトが設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:9000")
		if client.baseURL != "http://localhost:9000" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:9000")
		}
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:9000", WithTimeout(2*time.Second))
		if client.httpClient.Timeout != 2*time.Second {
			t.Errorf("Timeout = %v, want 2s", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にPOSTリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var (
			method, path, contentType string
			sent                      testPayload
		)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.Path
			contentType = r.Header.Get("Content-Type")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &sent)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		var result testPayload
		err := New(ts.URL).PostJSON(t.Context(), "/hooks/audit", testPayload{Name: "request", Value: 100}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if method != http.MethodPost {
			t.Errorf("Method = %q, want %q", method, http.MethodPost)
		}
		if path != "/hooks/audit" {
			t.Errorf("Path = %q, want %q", path, "/hooks/audit")
		}
		if contentType != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", contentType)
		}
		if sent.Name != "request" || sent.Value != 100 {
			t.Errorf("sent = %+v", sent)
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("resultがnilの場合はレスポンスボディを読まないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("not json"))
		}))
		defer ts.Close()

		if err := New(ts.URL).PostJSON(t.Context(), "", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("2xx以外のステータスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"failed"}`))
			}))

			err := New(ts.URL).PostJSON(t.Context(), "/", testPayload{}, nil)
			ts.Close()
			if err == nil {
				t.Errorf("status=%d でエラーが返るべき", status)
			}
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result testPayload
		if err := New(ts.URL).PostJSON(t.Context(), "/", testPayload{}, &result); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("シリアライズできないボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if err := New("http://127.0.0.1:1").PostJSON(t.Context(), "/", make(chan int), nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if err := New("http://127.0.0.1:1").PostJSON(t.Context(), "/", testPayload{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestHeaders はヘッダーの付与と伝播を検証する。
func TestHeaders(t *testing.T) {
	t.Parallel()

	t.Run("WithHeaderとWithRequestIDのヘッダーが送信されること", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		client := New(ts.URL, WithHeader("Authorization", "Bearer hook-token"))
		ctx := WithRequestID(t.Context(), "req-abc")
		if err := client.PostJSON(ctx, "/", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if got.Get("Authorization") != "Bearer hook-token" {
			t.Errorf("Authorization = %q, want %q", got.Get("Authorization"), "Bearer hook-token")
		}
		if got.Get("X-Request-ID") != "req-abc" {
			t.Errorf("X-Request-ID = %q, want req-abc", got.Get("X-Request-ID"))
		}
	})

	t.Run("リクエストIDが無い場合はX-Request-IDが送信されないこと", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Request-ID")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		if err := New(ts.URL).PostJSON(t.Context(), "/", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if got != "" {
			t.Errorf("X-Request-ID = %q, want empty string", got)
		}
	})
}
