package audit

import (
	"context"
	"fmt"

	"github.com/nao1215/restapi/pkg/event"
	"github.com/nao1215/restapi/pkg/httpclient"
)

// WebhookSink は監査イベントをJSONで外部のHTTPエンドポイントにPOSTする。
type WebhookSink struct {
	client *httpclient.Client
}

// NewWebhookSink は新しいWebhookSinkを生成する。
// urlにはイベントのPOST先URLを指定する。
func NewWebhookSink(url string, opts ...httpclient.Option) *WebhookSink {
	return &WebhookSink{client: httpclient.New(url, opts...)}
}

// Name はSink名を返す。
func (s *WebhookSink) Name() string { return "webhook" }

// Write はイベントをPOSTする。2xx以外のレスポンスはエラーになる。
func (s *WebhookSink) Write(ctx context.Context, ev *event.Event) error {
	if ev.RequestID != "" {
		ctx = httpclient.WithRequestID(ctx, ev.RequestID)
	}
	if err := s.client.PostJSON(ctx, "", ev, nil); err != nil {
		return fmt.Errorf("Webhookへのイベント送信に失敗: %w", err)
	}
	return nil
}
