// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッショントークン（JWT）の発行と検証、リクエストIDとアクセスログ、
// パニックリカバリ、CORS設定を含む。
package middleware
