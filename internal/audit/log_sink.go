package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nao1215/restapi/pkg/event"
)

// LogSink は監査イベントを構造化ログとして出力する。
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink は新しいLogSinkを生成する。
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

// Name はSink名を返す。
func (s *LogSink) Name() string { return "log" }

// Write はイベントをinfoレベルで出力する。
func (s *LogSink) Write(_ context.Context, ev *event.Event) error {
	s.logger.Info().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.EventType)).
		Str("aggregate_type", string(ev.AggregateType)).
		Str("aggregate_id", ev.AggregateID).
		Int64("actor_id", ev.ActorID).
		Str("request_id", ev.RequestID).
		RawJSON("data", ev.Data).
		Msg("audit")
	return nil
}
