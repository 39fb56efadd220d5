package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestSanitize は予約済みフィールドが除去されることを検証する。
func TestSanitize(t *testing.T) {
	t.Parallel()

	got := Sanitize(map[string]any{
		"id":          7,
		"create_date": "x",
		"write_date":  "y",
		"name":        "Alice",
	})
	want := map[string]any{"name": "Alice"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sanitize() mismatch (-want +got):\n%s", diff)
	}
}

// TestMerge はパッチが既存フィールドに上書きされることを検証する。
func TestMerge(t *testing.T) {
	t.Parallel()

	base := map[string]any{"name": "Alice", "age": json.Number("30")}
	got := Merge(base, map[string]any{"name": "Bob", "id": 99})

	want := map[string]any{"name": "Bob", "age": json.Number("30")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	if base["name"] != "Alice" {
		t.Errorf("元のマップが変更された: name = %v", base["name"])
	}
}

// TestEncodeDecodeFields は数値がjson.Numberとして復元されることを検証する。
func TestEncodeDecodeFields(t *testing.T) {
	t.Parallel()

	t.Run("整数がjson.Numberとして復元されること", func(t *testing.T) {
		t.Parallel()

		text, err := EncodeFields(map[string]any{"age": 42, "name": "Alice"})
		if err != nil {
			t.Fatalf("EncodeFields()でエラーが発生: %v", err)
		}
		fields, err := DecodeFields(text)
		if err != nil {
			t.Fatalf("DecodeFields()でエラーが発生: %v", err)
		}
		if fields["age"] != json.Number("42") {
			t.Errorf("age = %#v, want json.Number(\"42\")", fields["age"])
		}
	})

	t.Run("nilマップは空オブジェクトになること", func(t *testing.T) {
		t.Parallel()

		text, err := EncodeFields(nil)
		if err != nil {
			t.Fatalf("EncodeFields()でエラーが発生: %v", err)
		}
		if text != "{}" {
			t.Errorf("EncodeFields(nil) = %q, want {}", text)
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := DecodeFields("{"); err == nil {
			t.Error("不正なJSONでエラーが返るべき")
		}
	})
}

// TestNewRecord はRecordの組み立てを検証する。
func TestNewRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	r := NewRecord(3, map[string]any{"name": "Alice"}, created, created.Add(time.Hour))

	if r.ID() != 3 {
		t.Errorf("ID() = %d, want 3", r.ID())
	}
	if r["create_date"] != "2024-05-01 09:30:00" {
		t.Errorf("create_date = %v", r["create_date"])
	}
	if r["write_date"] != "2024-05-01 10:30:00" {
		t.Errorf("write_date = %v", r["write_date"])
	}
	if r["name"] != "Alice" {
		t.Errorf("name = %v", r["name"])
	}
}
