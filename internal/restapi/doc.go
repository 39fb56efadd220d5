// Package restapi は患者レコードを扱うREST APIゲートウェイを提供する。
//
// エンドポイント:
//   - GET    /restapi                  ヘルスチェック（認証不要）
//   - POST   /restapi/auth             ログインしてセッションを発行する
//   - GET    /restapi/get-all          全レコードを取得する
//   - GET    /restapi/get-data/:id     IDを指定してレコードを取得する
//   - POST   /restapi/create           レコードを作成する
//   - PUT    /restapi/update/:id       レコードを更新する
//   - DELETE /restapi/delete/:id       レコードを削除する
//
// auth以外の /restapi/* はセッショントークン（Bearerヘッダーまたはsession_id Cookie）が必要。
// 永続化と認証はRecordStoreとSessionServiceとして外部から注入する。
// 全てのJSONレスポンスは {success, status, message|error, data} 形式のエンベロープを返す。
package restapi
