// Package audit はレコード操作と認証の監査イベントを記録する。
//
// Recorderは登録された全てのSinkにイベントを書き込む。
// Sinkへの書き込み失敗はログに出力するのみで、呼び出し元には返さない。
// 監査の失敗がAPIレスポンスに影響することはない。
package audit
