// Package store はレコードストアとユーザーストアで共有するモデルとエラーを定義する。
//
// レコードはスキーマを持たないフィールドマップとして扱い、エンティティ名
// （例: "hospital.patient"）ごとに分割して保存する。具体的な永続化は
// sqlite / postgres サブパッケージが担当する。
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound は指定されたIDのレコード（またはユーザー）が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約に違反したことを表す。
	ErrDuplicate = errors.New("duplicate record")
)

// DateLayout はcreate_date / write_dateの表示形式。
const DateLayout = "2006-01-02 15:04:05"

// 予約済みフィールド名。リクエストボディで指定されても無視する。
const (
	FieldID         = "id"
	FieldCreateDate = "create_date"
	FieldWriteDate  = "write_date"
)

// Record はストアに保存された1件のレコード。
// "id"、ユーザー定義フィールド、"create_date"、"write_date" を含む。
type Record map[string]any

// ID はレコードのIDを返す。IDが無い場合は0を返す。
func (r Record) ID() int64 {
	switch v := r[FieldID].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	}
	return 0
}

// User はセッション認証の対象となるユーザー。
type User struct {
	// ID はユーザーの一意識別子。
	ID int64
	// Login はログイン名。一意。
	Login string
	// Name は表示名。
	Name string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// IsAdmin は管理者ユーザーかどうか。
	IsAdmin bool
	// Active はログイン可能なユーザーかどうか。
	Active bool
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// Sanitize は予約済みフィールドを除いたフィールドマップのコピーを返す。
func Sanitize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case FieldID, FieldCreateDate, FieldWriteDate:
			continue
		}
		out[k] = v
	}
	return out
}

// EncodeFields はフィールドマップをJSONテキストにシリアライズする。
func EncodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("フィールドのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

// DecodeFields はJSONテキストをフィールドマップにデシリアライズする。
// 数値はjson.Numberとして保持する。
func DecodeFields(data string) (map[string]any, error) {
	fields := map[string]any{}
	if data == "" {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("フィールドのデシリアライズに失敗: %w", err)
	}
	return fields, nil
}

// Merge はbaseのコピーにpatchを上書きしたマップを返す。
func Merge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range Sanitize(patch) {
		out[k] = v
	}
	return out
}

// NewRecord は保存済みの値からRecordを組み立てる。
func NewRecord(id int64, fields map[string]any, createdAt, updatedAt time.Time) Record {
	r := make(Record, len(fields)+3)
	for k, v := range fields {
		r[k] = v
	}
	r[FieldID] = id
	r[FieldCreateDate] = createdAt.UTC().Format(DateLayout)
	r[FieldWriteDate] = updatedAt.UTC().Format(DateLayout)
	return r
}
