package restapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// errInvalidBody はリクエストボディがJSONオブジェクトではないことを表す。
var errInvalidBody = errors.New("invalid JSON body")

// decodeFields はリクエストボディをフィールドマップにデコードする。
// 空のボディは空のマップになる。数値はjson.Numberとして保持する。
// JSON-RPC 2.0形式（{"jsonrpc":"2.0","params":{...}}）の場合はparamsを返す。
func decodeFields(c *gin.Context) (map[string]any, error) {
	if c.Request.Body == nil {
		return map[string]any{}, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", errInvalidBody)
	}

	if _, ok := fields["jsonrpc"]; !ok {
		return fields, nil
	}
	switch params := fields["params"].(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return params, nil
	default:
		return nil, fmt.Errorf("%w: params is not an object", errInvalidBody)
	}
}

// formatQuery はクエリパラメータを [key, "=", value, ...] 形式の検索ドメインに変換する。
// キーはソートされ、複数値を持つキーは値ごとに展開される。
func formatQuery(query map[string][]string) []any {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	domain := make([]any, 0, len(query)*3)
	for _, k := range keys {
		for _, v := range query[k] {
			domain = append(domain, k, "=", v)
		}
	}
	return domain
}

// stringField はフィールドマップから空でない文字列値を取り出す。
func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// hasValue はキーが存在し、nullでも空文字列でもないことを返す。
func hasValue(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}
