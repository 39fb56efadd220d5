// Package logging はzerologのロガーを設定から組み立てる。
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New は指定されたレベルと形式でロガーを生成する。
// formatが "console" の場合は人間向けの整形出力、それ以外はJSONで出力する。
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("ログレベルの解析に失敗: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
