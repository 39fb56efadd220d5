package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nao1215/restapi/pkg/event"
)

// Sink は監査イベントの書き込み先。
type Sink interface {
	// Name はログ出力用のSink名を返す。
	Name() string
	// Write はイベントを1件書き込む。
	Write(ctx context.Context, ev *event.Event) error
}

// Recorder は監査イベントを複数のSinkに配信する。
type Recorder struct {
	// sinks はイベントの書き込み先。
	sinks []Sink
	// logger は書き込み失敗を出力するロガー。
	logger zerolog.Logger
}

// NewRecorder は新しいRecorderを生成する。
// sinksが空の場合、Recordは何もしない。
func NewRecorder(logger zerolog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{
		sinks:  sinks,
		logger: logger,
	}
}

// Record はイベントを全てのSinkに書き込む。
// リクエストのキャンセルで監査が中断されないよう、コンテキストのキャンセルは引き継がない。
func (r *Recorder) Record(ctx context.Context, ev *event.Event) {
	if r == nil || ev == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, ev); err != nil {
			r.logger.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Str("event_id", ev.ID).
				Str("event_type", string(ev.EventType)).
				Msg("監査イベントの書き込みに失敗")
		}
	}
}
