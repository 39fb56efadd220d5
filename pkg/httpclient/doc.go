// Package httpclient は外部サービスへのJSON送信を行うHTTPクライアントを提供する。
//
// 監査イベントのWebhook配信などで使用する。
// リクエストIDはコンテキスト経由でX-Request-IDヘッダーに伝播される。
package httpclient
