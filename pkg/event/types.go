package event

import (
	"encoding/json"
	"time"
)

// AggregateType は監査イベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeRecord はレコードストアのレコード（患者など）を表す。
	AggregateTypeRecord AggregateType = "Record"
	// AggregateTypeUser はユーザーを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type は監査イベントの種類を表す。
type Type string

const (
	// TypePatientCreated は患者レコードが作成されたことを表す。
	TypePatientCreated Type = "PatientCreated"
	// TypePatientUpdated は患者レコードが更新されたことを表す。
	TypePatientUpdated Type = "PatientUpdated"
	// TypePatientDeleted は患者レコードが削除されたことを表す。
	TypePatientDeleted Type = "PatientDeleted"
	// TypeUserAuthenticated はユーザーがセッションを開始したことを表す。
	TypeUserAuthenticated Type = "UserAuthenticated"
)

// Event は監査ログに記録される不変のイベント。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子（例: "hospital.patient/12"）。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// ActorID は操作を行ったユーザーのID。
	ActorID int64 `json:"actor_id"`
	// RequestID はイベントを発生させたHTTPリクエストのID。
	RequestID string `json:"request_id,omitempty"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// RecordChangedData はレコードの作成・更新イベントのデータ。
type RecordChangedData struct {
	// Entity はエンティティ名。
	Entity string `json:"entity"`
	// RecordID は対象レコードのID。
	RecordID int64 `json:"record_id"`
	// Fields はリクエストで指定されたフィールド。
	Fields map[string]any `json:"fields"`
}

// RecordDeletedData はレコード削除イベントのデータ。
type RecordDeletedData struct {
	// Entity はエンティティ名。
	Entity string `json:"entity"`
	// RecordID は削除されたレコードのID。
	RecordID int64 `json:"record_id"`
}

// UserAuthenticatedData はUserAuthenticatedイベントのデータ。
type UserAuthenticatedData struct {
	// Login はログイン名。
	Login string `json:"login"`
	// DB はセッションのデータベース識別子。
	DB string `json:"db"`
}
