package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("RecordChangedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := RecordChangedData{
			Entity:   "hospital.patient",
			RecordID: 12,
			Fields:   map[string]any{"name": "Alice"},
		}

		before := time.Now().UTC()
		ev, err := New(RecordAggregateID("hospital.patient", 12), AggregateTypeRecord, TypePatientCreated, 3, data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Errorf("IDがUUIDではない: %q", ev.ID)
		}
		if ev.AggregateID != "hospital.patient/12" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "hospital.patient/12")
		}
		if ev.AggregateType != AggregateTypeRecord {
			t.Errorf("AggregateType = %q, want %q", ev.AggregateType, AggregateTypeRecord)
		}
		if ev.EventType != TypePatientCreated {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypePatientCreated)
		}
		if ev.ActorID != 3 {
			t.Errorf("ActorID = %d, want 3", ev.ActorID)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		decoded, err := DecodeData[RecordChangedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if decoded.RecordID != 12 || decoded.Fields["name"] != "Alice" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("x", AggregateTypeUser, TypeUserAuthenticated, 1, make(chan int)); err == nil {
			t.Fatal("chanはシリアライズできずエラーになるべき")
		}
	})

	t.Run("イベントIDは毎回異なること", func(t *testing.T) {
		t.Parallel()

		a, err := New("x", AggregateTypeUser, TypeUserAuthenticated, 1, UserAuthenticatedData{Login: "a"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		b, err := New("x", AggregateTypeUser, TypeUserAuthenticated, 1, UserAuthenticatedData{Login: "a"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if a.ID == b.ID {
			t.Error("イベントIDが重複している")
		}
	})
}

// TestDecodeData は型不一致時のエラーを検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	ev := &Event{Data: []byte(`{"record_id":"not-a-number"}`)}
	if _, err := DecodeData[RecordDeletedData](ev); err == nil {
		t.Fatal("型不一致でエラーが返るべき")
	}
}
