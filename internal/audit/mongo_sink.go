package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nao1215/restapi/pkg/event"
)

// MongoSink は監査イベントをMongoDBのコレクションに保存する。
type MongoSink struct {
	// client はNewMongoSinkで接続した場合のみ設定される。
	client *mongo.Client
	// collection はイベントの保存先コレクション。
	collection *mongo.Collection
}

// NewMongoSink はMongoDBに接続してMongoSinkを生成する。
func NewMongoSink(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDBへの接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDBへの疎通確認に失敗: %w", err)
	}
	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// NewMongoSinkFromCollection は既存のコレクションを書き込み先とするMongoSinkを生成する。
// 接続のライフサイクルは呼び出し元が管理する。
func NewMongoSinkFromCollection(collection *mongo.Collection) *MongoSink {
	return &MongoSink{collection: collection}
}

// Name はSink名を返す。
func (s *MongoSink) Name() string { return "mongo" }

// Write はイベントを1ドキュメントとして挿入する。
func (s *MongoSink) Write(ctx context.Context, ev *event.Event) error {
	doc, err := eventDocument(ev)
	if err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("監査ログの挿入に失敗: %w", err)
	}
	return nil
}

// Close はNewMongoSinkで確立した接続を切断する。
func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("MongoDBの切断に失敗: %w", err)
	}
	return nil
}

// eventDocument はイベントをMongoDBのドキュメントに変換する。
// DataはJSONからBSONのサブドキュメントに変換して保存する。
func eventDocument(ev *event.Event) (bson.D, error) {
	var data bson.M
	if len(ev.Data) > 0 {
		if err := bson.UnmarshalExtJSON(ev.Data, false, &data); err != nil {
			return nil, fmt.Errorf("イベントデータのBSON変換に失敗: %w", err)
		}
	}
	return bson.D{
		{Key: "event_id", Value: ev.ID},
		{Key: "aggregate_id", Value: ev.AggregateID},
		{Key: "aggregate_type", Value: string(ev.AggregateType)},
		{Key: "event_type", Value: string(ev.EventType)},
		{Key: "actor_id", Value: ev.ActorID},
		{Key: "request_id", Value: ev.RequestID},
		{Key: "data", Value: data},
		{Key: "inserted_at", Value: ev.CreatedAt},
	}, nil
}
